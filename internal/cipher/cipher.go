// Package cipher implements the message obfuscation applied to every stored
// payload: each plaintext byte is XORed with a fresh 16-byte random key,
// cycled over the message. The key travels hex-encoded next to the
// ciphertext, so this is obfuscation, not confidentiality; the transform is
// kept behind this package so a real AEAD could replace it without touching
// the relay or store.
package cipher

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

const keySize = 16

var ErrMalformedPayload = errors.New("malformed payload")

// Payload is an obfuscated message body. Ciphertext and Key are hex strings;
// decoding Ciphertext with the embedded Key recovers the original plaintext.
type Payload struct {
	Ciphertext string `json:"ciphertext"`
	Key        string `json:"key"`
}

// Encode obfuscates plaintext under a key generated for this call only.
func Encode(plaintext string) (Payload, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return Payload{}, err
	}

	src := []byte(plaintext)
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = b ^ key[i%keySize]
	}

	return Payload{
		Ciphertext: hex.EncodeToString(out),
		Key:        hex.EncodeToString(key),
	}, nil
}

// Decode reverses Encode using the key embedded in the payload. XOR is its
// own inverse, so the same cyclic walk recovers the plaintext exactly.
func Decode(p Payload) (string, error) {
	ct, err := hex.DecodeString(p.Ciphertext)
	if err != nil {
		return "", ErrMalformedPayload
	}
	key, err := hex.DecodeString(p.Key)
	if err != nil {
		return "", ErrMalformedPayload
	}
	if len(key) == 0 {
		if len(ct) == 0 {
			return "", nil
		}
		return "", ErrMalformedPayload
	}

	out := make([]byte, len(ct))
	for i, b := range ct {
		out[i] = b ^ key[i%len(key)]
	}
	return string(out), nil
}
