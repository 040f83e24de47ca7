// SPDX-License-Identifier: Apache-2.0

// Package randsrc wraps the OS-provided CSPRNG and provides a zero-on-drop
// buffer helper for secret material (derived keys, transformed master keys,
// protected attribute plaintexts — see spec §5 "Secret hygiene").
package randsrc

import (
	"crypto/rand"

	"github.com/keepctl/keepctl/internal/kperr"
)

// Bytes returns n cryptographically random bytes.
func Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, kperr.CryptoError("reading random bytes", err)
	}
	return b, nil
}

// SecretBuffer is a byte slice holding secret material that must be wiped
// before it is discarded. Zero value is an empty, already-wiped buffer.
type SecretBuffer struct {
	b []byte
}

// NewSecretBuffer copies src into a new SecretBuffer.
func NewSecretBuffer(src []byte) *SecretBuffer {
	b := make([]byte, len(src))
	copy(b, src)
	return &SecretBuffer{b: b}
}

// Bytes returns the underlying buffer. The caller must not retain it past
// a call to [SecretBuffer.Wipe].
func (s *SecretBuffer) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Wipe overwrites the buffer with zeros and releases it. Safe to call
// multiple times and on a nil receiver.
func (s *SecretBuffer) Wipe() {
	if s == nil {
		return
	}
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
}

// Wipe overwrites b with zeros in place. Used for transient key material
// that doesn't warrant its own SecretBuffer (e.g. a local key slice).
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
