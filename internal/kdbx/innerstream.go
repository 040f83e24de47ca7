// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"crypto/sha256"
	"crypto/sha512"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/salsa20/salsa"

	"github.com/keepctl/keepctl/internal/kperr"
)

// ProtectedStream produces the keystream XOR'd over protected attribute
// values, in document order (spec §4.3: "XOR'd with the inner random
// stream's keystream in document order of appearance of protected
// fields"). Next must be called once per protected value, in the same
// order a matching writer produced them, since it is simply a running
// keystream cursor.
type ProtectedStream interface {
	Next(n int) []byte
}

// NewProtectedStream constructs the keystream generator selected by
// streamID with the given random stream key.
func NewProtectedStream(streamID uint32, key []byte) (ProtectedStream, error) {
	switch streamID {
	case StreamChaCha20:
		return newChaCha20Stream(key)
	case StreamSalsa20:
		return newSalsa20Stream(key)
	case StreamNone:
		return noopStream{}, nil
	default:
		return nil, kperr.FormatError("unknown inner random stream ID")
	}
}

type noopStream struct{}

func (noopStream) Next(n int) []byte { return make([]byte, n) }

// chaCha20Stream derives its 32-byte key and 12-byte nonce from
// SHA-256/SHA-512 of the random stream key, matching KeePass's
// convention for the modern inner stream (spec §4.3, GLOSSARY "Inner
// random stream").
type chaCha20Stream struct {
	cipher *chacha20.Cipher
}

func newChaCha20Stream(key []byte) (*chaCha20Stream, error) {
	k := sha256.Sum256(key)
	n := sha512.Sum512(key)
	c, err := chacha20.NewUnauthenticatedCipher(k[:], n[:chacha20.NonceSize])
	if err != nil {
		return nil, kperr.CryptoError("constructing ChaCha20 inner stream", err)
	}
	return &chaCha20Stream{cipher: c}, nil
}

func (s *chaCha20Stream) Next(n int) []byte {
	zero := make([]byte, n)
	out := make([]byte, n)
	s.cipher.XORKeyStream(out, zero)
	return out
}

// salsa20Stream implements the legacy (KDBX3.1) inner stream: Salsa20
// keyed by SHA-256 of the random stream key, with KeePass's fixed nonce.
type salsa20Stream struct {
	key   [32]byte
	nonce [8]byte
	// counter advances the 64-bit block counter packed into the nonce's
	// upper half for each 64-byte block Next generates, since salsa.XORKeyStream always
	// starts a fresh call at block zero.
	counter uint64
	carry   []byte
}

// salsa20Nonce is KeePass's fixed 8-byte Salsa20 nonce for the legacy
// inner stream ("E830094B97205D2A").
var salsa20Nonce = [8]byte{0xE8, 0x30, 0x09, 0x4B, 0x97, 0x20, 0x5D, 0x2A}

func newSalsa20Stream(key []byte) (*salsa20Stream, error) {
	s := &salsa20Stream{nonce: salsa20Nonce}
	k := sha256.Sum256(key)
	s.key = k
	return s, nil
}

func (s *salsa20Stream) Next(n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		if len(s.carry) == 0 {
			s.carry = s.block()
			s.counter++
		}
		take := len(s.carry)
		if take > n-len(out) {
			take = n - len(out)
		}
		out = append(out, s.carry[:take]...)
		s.carry = s.carry[take:]
	}
	return out
}

func (s *salsa20Stream) block() []byte {
	var nonce [16]byte
	copy(nonce[:8], s.nonce[:])
	// salsa.XORKeyStream's nonce is 16 bytes when used as the low-level
	// primitive with an explicit counter in the upper 8 bytes.
	putUint64LE(nonce[8:], s.counter)
	zero := make([]byte, 64)
	out := make([]byte, 64)
	salsa.XORKeyStream(out, zero, &nonce, &s.key)
	return out
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
