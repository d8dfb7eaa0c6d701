package reports

import "crypto/sha256"

// DeriveKey expands an ECDH shared secret into 32 bytes of symmetric key
// material: SHA-256(secret || counter || ephemeral key) with a single
// big-endian counter round of one, the X9.63 KDF truncated to the one block
// the report cipher needs. The first 16 bytes are the AES key, the rest the
// GCM nonce.
func DeriveKey(secret, ephemeralKey []byte) []byte {
	hash := sha256.New()
	hash.Write(secret)
	hash.Write([]byte{0x00, 0x00, 0x00, 0x01})
	hash.Write(ephemeralKey)
	return hash.Sum(nil)
}
