// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"strconv"

	"github.com/keepctl/keepctl/internal/cipher"
	"github.com/keepctl/keepctl/internal/compositekey"
	"github.com/keepctl/keepctl/internal/kdf"
	"github.com/keepctl/keepctl/internal/kperr"
	"github.com/keepctl/keepctl/internal/model"
)

// openV3 reads a KDBX3.1 file for import (spec §6). KDBX3.1 predates the
// HMAC block stream and variant-dictionary KDF parameters introduced in
// KDBX4: header integrity is a plain SHA-256 checksum, the KDF is always
// AES-KDF with its seed/rounds stored as direct header fields, and key
// verification happens by comparing a 32-byte "stream start" plaintext
// rather than an HMAC. A file opened this way is only ever re-saved as
// KDBX4 — this codec never writes the legacy format.
func openV3(raw []byte, headerLen int, outer *OuterHeader, composite *compositekey.CompositeKey) (*model.Database, error) {
	rest := raw[headerLen:]
	if len(rest) < 32 {
		return nil, kperr.FormatError("file truncated after outer header")
	}
	gotSHA := rest[:32]
	cipherData := rest[32:]

	wantSHA := sha256.Sum256(outer.raw)
	if !bytes.Equal(gotSHA, wantSHA[:]) {
		return nil, kperr.CorruptionError("outer header SHA-256 mismatch")
	}

	k := &kdf.AESKDF{Rounds: outer.TransformRoundsV3}
	copySeed(k.Seed(), outer.TransformSeedV3)
	rawKey, err := composite.RawKey()
	if err != nil {
		return nil, err
	}
	transformedKey, err := k.Transform(context.Background(), rawKey)
	if err != nil {
		return nil, err
	}

	key := sha256Concat(outer.MasterSeed, transformedKey)
	decrypted, err := cipher.Decrypt(outer.CipherID, key, outer.EncryptionIV, cipherData)
	if err != nil {
		return nil, kperr.CorruptionError("payload decryption failed: database is corrupted or key is wrong")
	}
	if len(decrypted) < 32 {
		return nil, kperr.FormatError("decrypted payload too short for stream-start bytes")
	}
	startBytes := decrypted[:32]
	if !bytes.Equal(startBytes, outer.StreamStartBytesV3) {
		return nil, kperr.KeyError("invalid credentials")
	}

	xmlCompressed, err := readLegacyBlockStream(decrypted[32:])
	if err != nil {
		return nil, err
	}

	body := xmlCompressed
	if outer.Compression == compressionGzip {
		body, err = gunzip(body)
		if err != nil {
			return nil, kperr.FormatError("decompressing payload: " + err.Error())
		}
	}

	stream, err := NewProtectedStream(outer.InnerStreamIDV3, outer.ProtectedStreamKeyV3)
	if err != nil {
		return nil, err
	}

	binaries, err := extractV3MetaBinaries(body)
	if err != nil {
		return nil, err
	}

	db, err := unmarshalXML(body, stream, binaries)
	if err != nil {
		return nil, err
	}

	data := db.Data()
	data.CipherID = outer.CipherID
	data.Compression = compressionToModel(outer.Compression)
	data.KDF = k
	data.MasterSeed = outer.MasterSeed
	data.SetTransformedKey(transformedKey)
	return db, nil
}

// readLegacyBlockStream reads the pre-KDBX4 hashed block stream: each
// block is framed as index(u32 LE) | SHA-256 content hash(32) | size(u32
// LE) | data, terminated by a zero-hash, zero-size block. Unlike the
// KDBX4 block stream these hashes are unkeyed content checksums, not
// HMACs — they catch accidental corruption but, per spec §7, cannot by
// themselves authenticate the file against tampering.
func readLegacyBlockStream(b []byte) ([]byte, error) {
	var out []byte
	var index uint32
	pos := 0
	for {
		if pos+40 > len(b) {
			return nil, kperr.FormatError("legacy block stream truncated before block header")
		}
		gotIndex := binary.LittleEndian.Uint32(b[pos : pos+4])
		hash := b[pos+4 : pos+36]
		size := binary.LittleEndian.Uint32(b[pos+36 : pos+40])
		pos += 40
		if gotIndex != index {
			return nil, kperr.FormatError("legacy block stream out of order")
		}
		if pos+int(size) > len(b) {
			return nil, kperr.FormatError("legacy block stream block overruns buffer")
		}
		data := b[pos : pos+int(size)]
		pos += int(size)

		if size == 0 {
			var zero [32]byte
			if !bytes.Equal(hash, zero[:]) {
				return nil, kperr.CorruptionError("legacy block stream terminator hash mismatch")
			}
			break
		}
		want := sha256.Sum256(data)
		if !bytes.Equal(hash, want[:]) {
			return nil, kperr.CorruptionError("legacy block hash mismatch: database is corrupted")
		}
		out = append(out, data...)
		index++
	}
	return out, nil
}

// legacyBinariesDoc picks out just the Meta/Binaries section of a
// KDBX3.1 XML document; KDBX3.1 stores attachment bodies inline in the
// XML rather than in a KDBX4-style inner-header binary pool.
type legacyBinariesDoc struct {
	Meta struct {
		Binaries struct {
			Binary []legacyBinary `xml:"Binary"`
		} `xml:"Binaries"`
	} `xml:"Meta"`
}

type legacyBinary struct {
	ID         int    `xml:"ID,attr"`
	Compressed bool   `xml:"Compressed,attr"`
	Text       string `xml:",chardata"`
}

// extractV3MetaBinaries parses the legacy Meta/Binaries block, if any,
// into a slice indexed by binary ID so that applyXMLEntry's existing
// position-indexed Binary/Value/Ref handling (shared with the KDBX4
// path) resolves the same way regardless of container version.
func extractV3MetaBinaries(xmlBody []byte) ([][]byte, error) {
	var doc legacyBinariesDoc
	if err := xml.Unmarshal(xmlBody, &doc); err != nil {
		return nil, kperr.FormatError("parsing legacy Meta/Binaries: " + err.Error())
	}
	if len(doc.Meta.Binaries.Binary) == 0 {
		return nil, nil
	}
	maxID := 0
	for _, b := range doc.Meta.Binaries.Binary {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	binaries := make([][]byte, maxID+1)
	for _, b := range doc.Meta.Binaries.Binary {
		raw, err := base64.StdEncoding.DecodeString(b.Text)
		if err != nil {
			return nil, kperr.FormatError("decoding legacy binary " + strconv.Itoa(b.ID))
		}
		if b.Compressed {
			raw, err = gunzip(raw)
			if err != nil {
				return nil, kperr.FormatError("decompressing legacy binary " + strconv.Itoa(b.ID))
			}
		}
		binaries[b.ID] = raw
	}
	return binaries, nil
}
