// Package device models a tracked accessory: the owner's private scalar plus
// everything derived from it. Only the private key is authoritative; the
// advertisement key and its hash are recomputed on demand so that stale
// cached values in a keyfile can never poison a report lookup.
package device

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tagtrail/tagtrail/lib/codec"
	"github.com/tagtrail/tagtrail/lib/curve"
)

type Device struct {
	Name       string
	PrivateKey []byte // 28-byte P-224 scalar
}

// PublicKey derives the compressed public key: one format byte plus the
// 28-byte X coordinate.
func (d Device) PublicKey() ([]byte, error) {
	return curve.DerivePublic(d.PrivateKey)
}

// AdvertisementKey is the public key without the format prefix, the 28 bytes
// a deployed tag broadcasts.
func (d Device) AdvertisementKey() ([]byte, error) {
	pub, err := d.PublicKey()
	if err != nil {
		return nil, err
	}
	return pub[1:], nil
}

// HashedAdvertisementKey is base64(SHA-256(advertisement key)), the opaque id
// the report store indexes reports by.
func (d Device) HashedAdvertisementKey() (string, error) {
	adv, err := d.AdvertisementKey()
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(adv)
	return codec.ToBase64(hash[:]), nil
}

// Generate creates a new device identity with a random P-224 scalar. It
// retries until the hashed advertisement key contains no '/', since some
// report stores use the hash as a path segment.
func Generate(name string) (*Device, error) {
	for {
		pk, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
		if err != nil {
			return nil, err
		}

		priv := make([]byte, curve.ScalarSize)
		pk.D.FillBytes(priv)

		d := &Device{Name: name, PrivateKey: priv}
		hashed, err := d.HashedAdvertisementKey()
		if err != nil {
			return nil, err
		}
		if strings.Contains(hashed, "/") {
			continue
		}
		return d, nil
	}
}

// LoadFromFile reads a keyfile in the haystack format: "Private key",
// "Advertisement key" and "Hashed adv key" lines, values base64-encoded.
// Derived fields stored in the file are cross-checked against a fresh
// recomputation and discarded; a mismatch is logged, not fatal.
func LoadFromFile(fileName string) (*Device, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open file (%s): %w", fileName, err)
	}
	defer f.Close()

	baseName := filepath.Base(fileName)
	device := Device{
		Name: strings.TrimSuffix(baseName, ".keys"),
	}
	var storedHash string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, val, found := strings.Cut(line, ": ")
		if !found {
			log.Warn().Str("file", fileName).Str("line", line).Msg("invalid keyfile line")
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "Private key":
			pk, err := codec.FromBase64(val)
			if err != nil {
				return nil, fmt.Errorf("failed to decode private key: %w", err)
			}
			device.PrivateKey = pk
		case "Hashed adv key":
			storedHash = val
		case "Advertisement key":
			// derived from the private key, nothing to keep
		default:
			log.Warn().Str("file", fileName).Str("key", key).Msg("unknown keyfile entry")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file (%s): %w", fileName, err)
	}

	if device.PrivateKey == nil {
		return nil, fmt.Errorf("keyfile %s has no private key", fileName)
	}
	hashed, err := device.HashedAdvertisementKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive id for %s: %w", fileName, err)
	}
	if storedHash != "" && storedHash != hashed {
		log.Warn().Str("file", fileName).Str("stored", storedHash).Str("derived", hashed).
			Msg("stored hashed adv key is stale, using derived value")
	}
	return &device, nil
}

// LoadDir loads every *.keys file in dir.
func LoadDir(dir string) ([]Device, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.keys"))
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(matches))
	for _, m := range matches {
		d, err := LoadFromFile(m)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, nil
}

// SaveToFile writes the keyfile as Name.keys in the current directory.
func (d *Device) SaveToFile() error {
	f, err := os.Create(d.Name + ".keys")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	adv, err := d.AdvertisementKey()
	if err != nil {
		return err
	}
	hashed, err := d.HashedAdvertisementKey()
	if err != nil {
		return err
	}

	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("Private key: %s\n", codec.ToBase64(d.PrivateKey)))
	b.WriteString(fmt.Sprintf("Advertisement key: %s\n", codec.ToBase64(adv)))
	b.WriteString(fmt.Sprintf("Hashed adv key: %s\n", hashed))
	if _, err = f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}
