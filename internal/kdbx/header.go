// SPDX-License-Identifier: Apache-2.0

// Package kdbx implements the encrypted container codec described in
// spec.md §4.3: outer header TLV, HMAC-authenticated block stream,
// ciphered payload, inner header, and the XML domain-tree serialization,
// plus KDBX3.1 read compatibility for import.
package kdbx

import (
	"encoding/binary"

	"github.com/keepctl/keepctl/internal/cipher"
	"github.com/keepctl/keepctl/internal/kperr"
)

// Signatures and version identifying a KeePass KDBX database (spec §4.3
// "two magic words ... then a version field").
const (
	sigMagic1   uint32 = 0x9AA2D903
	sigMagic2V3 uint32 = 0xB54BFB66
	sigMagic2V4 uint32 = 0xB54BFB67
	verMajorV4  uint16 = 4
	verMajorV3  uint16 = 3
)

// Outer header field IDs.
const (
	fieldEnd                   byte = 0
	fieldComment               byte = 1
	fieldCipherID              byte = 2
	fieldCompressionFlags      byte = 3
	fieldMasterSeed            byte = 4
	fieldTransformSeedV3       byte = 5 // KDBX3.1 only
	fieldTransformRoundsV3     byte = 6 // KDBX3.1 only
	fieldEncryptionIV          byte = 7
	fieldProtectedStreamKeyV3  byte = 8 // KDBX3.1 only
	fieldStreamStartBytesV3    byte = 9 // KDBX3.1 only
	fieldInnerRandomStreamIDV3 byte = 10
	fieldKDFParameters         byte = 11 // KDBX4
	fieldPublicCustomData      byte = 12 // KDBX4
)

// Compression flags as stored in the outer header (spec §4.3).
const (
	compressionNone uint32 = 0
	compressionGzip uint32 = 1
)

// Inner random stream IDs (spec §4.3 "inner random stream ID").
const (
	StreamNone    uint32 = 0
	StreamSalsa20 uint32 = 2 // KDBX3.1 legacy
	StreamChaCha20 uint32 = 3
)

// OuterHeader is the plaintext portion of a KDBX file, parsed before any
// decryption takes place.
type OuterHeader struct {
	VersionMajor uint16
	VersionMinor uint16

	CipherID    cipher.ID
	Compression uint32
	MasterSeed  []byte
	EncryptionIV []byte

	// KDF holds the KDBX4 variant-dictionary KDF parameters. Nil for
	// KDBX3.1 files, which instead populate TransformSeedV3/RoundsV3.
	KDF *VariantDict

	PublicCustomData *VariantDict

	// V3 fields, populated only when VersionMajor == 3.
	TransformSeedV3       []byte
	TransformRoundsV3     uint64
	ProtectedStreamKeyV3  []byte
	StreamStartBytesV3    []byte
	InnerStreamIDV3       uint32

	// raw is the exact byte range the header occupied, needed to compute
	// the header SHA-256/HMAC that authenticates it (spec §4.3 "Header
	// integrity").
	raw []byte
}

// ReadOuterHeader parses the outer header from the start of a KDBX file,
// returning the header and the number of bytes it consumed.
func ReadOuterHeader(b []byte) (*OuterHeader, int, error) {
	if len(b) < 12 {
		return nil, 0, kperr.FormatError("file too short to contain a KDBX header")
	}
	m1 := binary.LittleEndian.Uint32(b[0:4])
	m2 := binary.LittleEndian.Uint32(b[4:8])
	if m1 != sigMagic1 {
		return nil, 0, kperr.FormatError("not a KeePass database: bad magic")
	}
	if m2 != sigMagic2V4 && m2 != sigMagic2V3 {
		return nil, 0, kperr.FormatError("not a KeePass database: unrecognized second magic")
	}
	minor := binary.LittleEndian.Uint16(b[8:10])
	major := binary.LittleEndian.Uint16(b[10:12])
	if major != verMajorV4 && major != verMajorV3 {
		return nil, 0, kperr.FormatError("unsupported KDBX major version")
	}
	if (major == verMajorV4) != (m2 == sigMagic2V4) {
		return nil, 0, kperr.FormatError("KDBX version field does not match file signature")
	}

	h := &OuterHeader{VersionMajor: major, VersionMinor: minor}
	pos := 12

	for {
		need := 3
		if major >= 4 {
			need = 5
		}
		if pos+need > len(b) {
			return nil, 0, kperr.FormatError("outer header truncated")
		}
		id := b[pos]
		var size int
		if major >= 4 {
			size = int(binary.LittleEndian.Uint32(b[pos+1 : pos+5]))
			pos += 5
		} else {
			size = int(binary.LittleEndian.Uint16(b[pos+1 : pos+3]))
			pos += 3
		}
		if pos+size > len(b) {
			return nil, 0, kperr.FormatError("outer header field overruns buffer")
		}
		field := b[pos : pos+size]
		pos += size

		if id == fieldEnd {
			break
		}
		if err := h.setField(id, field); err != nil {
			return nil, 0, err
		}
	}

	h.raw = b[:pos]
	return h, pos, nil
}

func (h *OuterHeader) setField(id byte, v []byte) error {
	switch id {
	case fieldCipherID:
		if len(v) != 16 {
			return kperr.FormatError("cipher UUID must be 16 bytes")
		}
		copy(h.CipherID[:], v)
	case fieldCompressionFlags:
		if len(v) != 4 {
			return kperr.FormatError("compression flags must be 4 bytes")
		}
		h.Compression = binary.LittleEndian.Uint32(v)
	case fieldMasterSeed:
		h.MasterSeed = append([]byte(nil), v...)
	case fieldEncryptionIV:
		h.EncryptionIV = append([]byte(nil), v...)
	case fieldKDFParameters:
		vd, err := UnmarshalVariantDict(v)
		if err != nil {
			return err
		}
		h.KDF = vd
	case fieldPublicCustomData:
		vd, err := UnmarshalVariantDict(v)
		if err != nil {
			return err
		}
		h.PublicCustomData = vd
	case fieldTransformSeedV3:
		h.TransformSeedV3 = append([]byte(nil), v...)
	case fieldTransformRoundsV3:
		if len(v) != 8 {
			return kperr.FormatError("KDBX3.1 transform rounds must be 8 bytes")
		}
		h.TransformRoundsV3 = binary.LittleEndian.Uint64(v)
	case fieldProtectedStreamKeyV3:
		h.ProtectedStreamKeyV3 = append([]byte(nil), v...)
	case fieldStreamStartBytesV3:
		h.StreamStartBytesV3 = append([]byte(nil), v...)
	case fieldInnerRandomStreamIDV3:
		if len(v) != 4 {
			return kperr.FormatError("inner random stream ID must be 4 bytes")
		}
		h.InnerStreamIDV3 = binary.LittleEndian.Uint32(v)
	case fieldComment:
		// ignored
	default:
		// Unknown fields are tolerated for forward compatibility, per
		// spec §4.3's "readers accept minor upgrades".
	}
	return nil
}

// Marshal serializes h as a KDBX4 outer header and returns the bytes,
// including the terminating field.
func (h *OuterHeader) Marshal() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], sigMagic1)
	binary.LittleEndian.PutUint32(buf[4:8], sigMagic2V4)
	binary.LittleEndian.PutUint16(buf[8:10], h.VersionMinor)
	binary.LittleEndian.PutUint16(buf[10:12], verMajorV4)

	writeField := func(id byte, v []byte) {
		buf = append(buf, id)
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, uint32(len(v)))
		buf = append(buf, tmp...)
		buf = append(buf, v...)
	}

	writeField(fieldCipherID, h.CipherID[:])
	compBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(compBuf, h.Compression)
	writeField(fieldCompressionFlags, compBuf)
	writeField(fieldMasterSeed, h.MasterSeed)
	writeField(fieldEncryptionIV, h.EncryptionIV)
	writeField(fieldKDFParameters, h.KDF.Marshal())
	if h.PublicCustomData != nil {
		writeField(fieldPublicCustomData, h.PublicCustomData.Marshal())
	}
	writeField(fieldEnd, nil)

	h.raw = buf
	return buf
}

// Raw returns the exact bytes of the header as parsed or last marshaled,
// for header-integrity hashing.
func (h *OuterHeader) Raw() []byte { return h.raw }
