package reports

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// Backend is one AES-GCM implementation. Backends must be semantically
// interchangeable: identical inputs produce byte-identical plaintext. Open
// returns ErrAuthentication if and only if the tag does not verify; any
// other error is an implementation failure and the caller may fall back.
type Backend interface {
	Name() string
	Open(key, iv, ciphertext, tag []byte) ([]byte, error)
}

// DefaultBackends returns the ordered fallback chain: the platform cipher
// first, the generic composition when it cannot be used.
func DefaultBackends() []Backend {
	return []Backend{platformBackend{}, genericBackend{}}
}

// platformBackend delegates to crypto/cipher's GCM, which picks up hardware
// AES support where the platform has it.
type platformBackend struct{}

func (platformBackend) Name() string { return "platform" }

func (platformBackend) Open(key, iv, ciphertext, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plain, err := aesgcm.Open(nil, iv, sealed, nil)
	if err != nil {
		// crypto/cipher reports every open failure as an authentication
		// failure once the cipher is constructed.
		return nil, ErrAuthentication
	}
	return plain, nil
}

// genericBackend runs the GCM composition in gcm.go on top of the raw AES
// block cipher.
type genericBackend struct{}

func (genericBackend) Name() string { return "generic" }

func (genericBackend) Open(key, iv, ciphertext, tag []byte) ([]byte, error) {
	return gcmOpen(key, iv, ciphertext, tag)
}

// open tries each backend in order. An authentication failure is
// authoritative and propagates immediately; both backends would agree on it.
// An implementation error gets one retry on the same backend before the
// chain moves on. When the chain is exhausted the last error is surfaced
// under ErrNoBackend.
func open(backends []Backend, key, iv, ciphertext, tag []byte) ([]byte, error) {
	var last error
	for _, b := range backends {
		for attempt := 0; attempt < 2; attempt++ {
			plain, err := b.Open(key, iv, ciphertext, tag)
			if err == nil {
				return plain, nil
			}
			if errors.Is(err, ErrAuthentication) {
				return nil, err
			}
			last = fmt.Errorf("%s: %w", b.Name(), err)
		}
	}
	if last == nil {
		last = errors.New("no backends configured")
	}
	return nil, fmt.Errorf("%w: %s", ErrNoBackend, last)
}
