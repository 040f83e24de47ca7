// SPDX-License-Identifier: Apache-2.0

// Package compositekey implements the ordered collection of key factors
// that seed key derivation (spec §4.1). A [CompositeKey] combines one or
// more [Component]s — password, key file, or challenge-response token —
// into a single 32-byte seed that is then run through a KDF.
package compositekey

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"os"

	"golang.org/x/text/unicode/norm"

	"github.com/keepctl/keepctl/internal/kperr"
)

// Component contributes 32 bytes of seed material to a CompositeKey.
type Component interface {
	// Seed returns this component's 32-byte contribution.
	Seed() ([32]byte, error)
}

// CompositeKey is an ordered list of key components. Order is significant
// and is not recoverable from the on-disk format, so callers must
// preserve the order used when the database was created or last saved.
type CompositeKey struct {
	components []Component
}

// New returns an empty CompositeKey.
func New() *CompositeKey {
	return &CompositeKey{}
}

// Add appends c to the end of the component list.
func (ck *CompositeKey) Add(c Component) {
	ck.components = append(ck.components, c)
}

// Len reports the number of components.
func (ck *CompositeKey) Len() int { return len(ck.components) }

// RawKey returns SHA-256 of the concatenation of all component
// contributions in order (spec §4.1). It is the input to a KDF's
// Transform, never the transformed master key itself.
func (ck *CompositeKey) RawKey() ([]byte, error) {
	h := sha256.New()
	for _, c := range ck.components {
		seed, err := c.Seed()
		if err != nil {
			return nil, err
		}
		h.Write(seed[:])
	}
	return h.Sum(nil), nil
}

// Equal reports whether a and b produce the same raw key, compared in
// constant time. Equality is by value, not by component identity or order
// of equal-contributing components.
func Equal(a, b *CompositeKey) (bool, error) {
	ak, err := a.RawKey()
	if err != nil {
		return false, err
	}
	bk, err := b.RawKey()
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(ak, bk) == 1, nil
}

// PasswordComponent is a user-supplied passphrase, NFC-normalized and
// hashed with SHA-256.
type PasswordComponent struct {
	Password string
}

func (p PasswordComponent) Seed() ([32]byte, error) {
	normalized := norm.NFC.String(p.Password)
	return sha256.Sum256([]byte(normalized)), nil
}

// KeyFileComponent is a key file on disk. It accepts four on-disk forms,
// detected in this order: a raw 32-byte binary key, a hex-encoded 64-byte
// text key, an XML-wrapped <KeyFile> document, or an arbitrary file whose
// entire contents are SHA-256'd.
type KeyFileComponent struct {
	Path string
}

func (k KeyFileComponent) Seed() ([32]byte, error) {
	data, err := os.ReadFile(k.Path)
	if err != nil {
		return [32]byte{}, kperr.IoError(k.Path, err)
	}
	return keyFileSeed(data)
}

func keyFileSeed(data []byte) ([32]byte, error) {
	if len(data) == 32 {
		var out [32]byte
		copy(out[:], data)
		return out, nil
	}
	if seed, ok := tryHexKeyFile(data); ok {
		return seed, nil
	}
	if seed, ok := tryXMLKeyFile(data); ok {
		return seed, nil
	}
	return sha256.Sum256(data), nil
}

func tryHexKeyFile(data []byte) ([32]byte, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) != 64 {
		return [32]byte{}, false
	}
	decoded := make([]byte, 32)
	if _, err := hex.Decode(decoded, trimmed); err != nil {
		return [32]byte{}, false
	}
	var out [32]byte
	copy(out[:], decoded)
	return out, true
}

type xmlKeyFile struct {
	XMLName xml.Name `xml:"KeyFile"`
	Key     struct {
		Data string `xml:"Data"`
	} `xml:"Key"`
}

func tryXMLKeyFile(data []byte) ([32]byte, bool) {
	var kf xmlKeyFile
	if err := xml.Unmarshal(data, &kf); err != nil || kf.Key.Data == "" {
		return [32]byte{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(kf.Key.Data)
	if err != nil || len(decoded) != 32 {
		return [32]byte{}, false
	}
	var out [32]byte
	copy(out[:], decoded)
	return out, true
}

// ChallengeResponseComponent mixes in the output of a hardware token
// challenged with the file's master seed. It is mixed in before the KDF
// transform runs, as one seed of the composite's raw key: Challenge is
// presented with MasterSeed, and its response, of any length, is SHA-256
// hashed into the 32-byte seed.
type ChallengeResponseComponent struct {
	Challenge func(masterSeed []byte) ([]byte, error)
	MasterSeed []byte
}

func (cr ChallengeResponseComponent) Seed() ([32]byte, error) {
	resp, err := cr.Challenge(cr.MasterSeed)
	if err != nil {
		return [32]byte{}, kperr.CryptoError("challenge-response failed", err)
	}
	return sha256.Sum256(resp), nil
}
