package reports

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

// Generic AES-GCM (NIST SP 800-38D) built on the raw block cipher: GHASH
// over GF(2^128) for authentication, CTR for the keystream. Exists as the
// software fallback backend; its output must match crypto/cipher bit for
// bit, including the non-standard 16-byte nonce the report format uses.

const gcmBlockSize = 16

// fe128 is a 128-bit field element as two big-endian uint64 halves.
type fe128 struct{ hi, lo uint64 }

func feFromBytes(b []byte) fe128 {
	return fe128{binary.BigEndian.Uint64(b[:8]), binary.BigEndian.Uint64(b[8:16])}
}

// gfMul multiplies x by y in GF(2^128) modulo the GCM polynomial, bits
// taken MSB first.
func gfMul(x, y fe128) fe128 {
	var z fe128
	v := y
	for i := 0; i < 128; i++ {
		var bit uint64
		if i < 64 {
			bit = (x.hi >> (63 - i)) & 1
		} else {
			bit = (x.lo >> (127 - i)) & 1
		}
		if bit == 1 {
			z.hi ^= v.hi
			z.lo ^= v.lo
		}
		carry := v.lo & 1
		v.lo = v.lo>>1 | v.hi<<63
		v.hi >>= 1
		if carry == 1 {
			v.hi ^= 0xe100000000000000
		}
	}
	return z
}

type ghash struct {
	h, y fe128
}

// update absorbs one complete field of the GHASH input, zero-padded to the
// block size. Fields must not be split across calls.
func (g *ghash) update(data []byte) {
	for len(data) > 0 {
		var block [gcmBlockSize]byte
		n := copy(block[:], data)
		data = data[n:]
		x := feFromBytes(block[:])
		g.y.hi ^= x.hi
		g.y.lo ^= x.lo
		g.y = gfMul(g.y, g.h)
	}
}

func (g *ghash) lengths(aadLen, textLen int) {
	var block [gcmBlockSize]byte
	binary.BigEndian.PutUint64(block[:8], uint64(aadLen)*8)
	binary.BigEndian.PutUint64(block[8:], uint64(textLen)*8)
	g.update(block[:])
}

func (g *ghash) sum() [gcmBlockSize]byte {
	var out [gcmBlockSize]byte
	binary.BigEndian.PutUint64(out[:8], g.y.hi)
	binary.BigEndian.PutUint64(out[8:], g.y.lo)
	return out
}

func inc32(counter *[gcmBlockSize]byte) {
	n := binary.BigEndian.Uint32(counter[12:]) + 1
	binary.BigEndian.PutUint32(counter[12:], n)
}

// deriveCounter computes J0. A 12-byte nonce is used directly with a one
// counter; anything else goes through GHASH with the nonce bit length.
func deriveCounter(h fe128, nonce []byte) [gcmBlockSize]byte {
	var j0 [gcmBlockSize]byte
	if len(nonce) == 12 {
		copy(j0[:], nonce)
		j0[15] = 1
		return j0
	}
	g := ghash{h: h}
	g.update(nonce)
	var lenBlock [gcmBlockSize]byte
	binary.BigEndian.PutUint64(lenBlock[8:], uint64(len(nonce))*8)
	g.update(lenBlock[:])
	return g.sum()
}

func ctrXor(block cipher.Block, counter [gcmBlockSize]byte, src []byte) []byte {
	out := make([]byte, len(src))
	var keystream [gcmBlockSize]byte
	for i := 0; i < len(src); i += gcmBlockSize {
		block.Encrypt(keystream[:], counter[:])
		inc32(&counter)
		end := i + gcmBlockSize
		if end > len(src) {
			end = len(src)
		}
		for j := i; j < end; j++ {
			out[j] = src[j] ^ keystream[j-i]
		}
	}
	return out
}

// gcmOpen verifies the tag over the ciphertext and, only on success,
// returns the decrypted plaintext. No associated data; the report format
// carries none.
func gcmOpen(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	if len(tag) != gcmBlockSize {
		return nil, errors.New("tag must be 16 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if block.BlockSize() != gcmBlockSize {
		return nil, errors.New("unexpected block size")
	}

	var hBytes [gcmBlockSize]byte
	block.Encrypt(hBytes[:], hBytes[:])
	h := feFromBytes(hBytes[:])

	j0 := deriveCounter(h, nonce)

	g := ghash{h: h}
	g.update(ciphertext)
	g.lengths(0, len(ciphertext))
	s := g.sum()

	var expected [gcmBlockSize]byte
	block.Encrypt(expected[:], j0[:])
	for i := range expected {
		expected[i] ^= s[i]
	}
	if subtle.ConstantTimeCompare(expected[:len(tag)], tag) != 1 {
		return nil, ErrAuthentication
	}

	counter := j0
	inc32(&counter)
	return ctrXor(block, counter, ciphertext), nil
}
