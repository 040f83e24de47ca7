// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"github.com/keepctl/keepctl/internal/kdf"
	"github.com/keepctl/keepctl/internal/kperr"
)

// KDF UUIDs as defined by the KDBX4 format (spec §4.3 "KDF parameters").
var (
	kdfUUIDAES      = [16]byte{0xC9, 0xD9, 0xF3, 0x9A, 0x62, 0x8A, 0x44, 0x60, 0xBF, 0x74, 0x0D, 0x08, 0xC1, 0x8A, 0x4F, 0xEA}
	kdfUUIDArgon2d  = [16]byte{0xEF, 0x63, 0x6D, 0xDF, 0x8C, 0x29, 0x44, 0x4B, 0x91, 0xF7, 0xA9, 0xA4, 0x03, 0xE3, 0x0A, 0x0C}
	kdfUUIDArgon2id = [16]byte{0x9E, 0x29, 0x8B, 0x19, 0x56, 0xDB, 0x47, 0x73, 0xB2, 0x3D, 0xFC, 0x3E, 0xC6, 0xF0, 0xA1, 0xE6}
)

// kdfFromVariantDict reconstructs a kdf.KDF from the outer header's KDF
// parameter blob. Both Argon2d and Argon2id UUIDs resolve to [kdf.Argon2],
// which always computes Argon2id (see DESIGN.md for why).
func kdfFromVariantDict(vd *VariantDict) (kdf.KDF, error) {
	id, ok := vd.GetBytes("$UUID")
	if !ok || len(id) != 16 {
		return nil, kperr.FormatError("KDF parameters missing $UUID")
	}
	var uuid [16]byte
	copy(uuid[:], id)

	seed, ok := vd.GetBytes("S")
	if !ok {
		return nil, kperr.FormatError("KDF parameters missing seed")
	}

	switch uuid {
	case kdfUUIDAES:
		rounds, ok := vd.GetUInt64("R")
		if !ok {
			return nil, kperr.FormatError("AES-KDF parameters missing round count")
		}
		k := &kdf.AESKDF{Rounds: rounds}
		copySeed(k.Seed(), seed)
		return k, nil
	case kdfUUIDArgon2d, kdfUUIDArgon2id:
		mem, _ := vd.GetUInt64("M")
		iter, _ := vd.GetUInt64("I")
		par, _ := vd.GetUInt32("P")
		ver, _ := vd.GetUInt32("V")
		a := &kdf.Argon2{
			Memory:      uint32(mem / 1024),
			Iterations:  uint32(iter),
			Parallelism: uint8(par),
			Version:     ver,
		}
		copySeed(a.Seed(), seed)
		return a, nil
	default:
		return nil, kperr.FormatError("unsupported KDF UUID")
	}
}

// kdfToVariantDict serializes k's parameters to the outer header's KDF
// variant dictionary.
func kdfToVariantDict(k kdf.KDF) (*VariantDict, error) {
	vd := NewVariantDict()
	switch v := k.(type) {
	case *kdf.AESKDF:
		vd.SetBytes("$UUID", kdfUUIDAES[:])
		vd.SetBytes("S", v.Seed())
		vd.SetUInt64("R", v.Rounds)
	case *kdf.Argon2:
		vd.SetBytes("$UUID", kdfUUIDArgon2id[:])
		vd.SetBytes("S", v.Seed())
		vd.SetUInt64("M", uint64(v.Memory)*1024)
		vd.SetUInt64("I", uint64(v.Iterations))
		vd.SetUInt32("P", uint32(v.Parallelism))
		vd.SetUInt32("V", v.Version)
	default:
		return nil, kperr.FormatError("unsupported KDF implementation")
	}
	return vd, nil
}

func copySeed(dst, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	copy(dst, src[:n])
}
