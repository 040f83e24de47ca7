// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"github.com/keepctl/keepctl/internal/cipher"
	"github.com/keepctl/keepctl/internal/compositekey"
	"github.com/keepctl/keepctl/internal/kperr"
	"github.com/keepctl/keepctl/internal/model"
)

// Open parses raw KDBX file bytes, derives the transformed master key
// from composite via the file's recorded KDF parameters, decrypts and
// verifies the container, and returns the reconstructed Database. Both
// KDBX4 and KDBX3.1 (spec §6: "readers must also accept KDBX3.1 for
// import") are recognized; KDBX3.1 files are upgraded in memory — a
// subsequent Save always emits KDBX4.
func Open(raw []byte, composite *compositekey.CompositeKey) (*model.Database, error) {
	outer, headerLen, err := ReadOuterHeader(raw)
	if err != nil {
		return nil, err
	}
	if outer.VersionMajor == verMajorV3 {
		return openV3(raw, headerLen, outer, composite)
	}
	return openV4(raw, headerLen, outer, composite)
}

func openV4(raw []byte, headerLen int, outer *OuterHeader, composite *compositekey.CompositeKey) (*model.Database, error) {
	rest := raw[headerLen:]
	if len(rest) < 64 {
		return nil, kperr.FormatError("file truncated after outer header")
	}
	gotSHA := rest[:32]
	gotHMAC := rest[32:64]
	blockData := rest[64:]

	wantSHA := sha256.Sum256(outer.raw)
	if subtle.ConstantTimeCompare(gotSHA, wantSHA[:]) != 1 {
		return nil, kperr.CorruptionError("outer header SHA-256 mismatch")
	}

	kdfImpl, err := kdfFromVariantDict(outer.KDF)
	if err != nil {
		return nil, err
	}
	rawKey, err := composite.RawKey()
	if err != nil {
		return nil, err
	}
	transformedKey, err := kdfImpl.Transform(context.Background(), rawKey)
	if err != nil {
		return nil, err
	}

	hmacBase := deriveHMACBaseKey(outer.MasterSeed, transformedKey)
	wantHMAC := hmacRaw(headerHMACKey(hmacBase), outer.raw)
	if subtle.ConstantTimeCompare(gotHMAC, wantHMAC) != 1 {
		return nil, kperr.KeyError("invalid credentials or corrupted header")
	}

	ciphertext, _, err := ReadBlockStream(blockData, hmacBase)
	if err != nil {
		return nil, err
	}

	key := sha256Concat(outer.MasterSeed, transformedKey)
	payload, err := cipher.Decrypt(outer.CipherID, key, outer.EncryptionIV, ciphertext)
	if err != nil {
		return nil, kperr.CorruptionError("payload decryption failed: database is corrupted or key is wrong")
	}

	inner, innerLen, err := ReadInnerHeader(payload)
	if err != nil {
		return nil, err
	}
	body := payload[innerLen:]
	if outer.Compression == compressionGzip {
		body, err = gunzip(body)
		if err != nil {
			return nil, kperr.FormatError("decompressing payload: " + err.Error())
		}
	}

	stream, err := NewProtectedStream(inner.StreamID, inner.StreamKey)
	if err != nil {
		return nil, err
	}
	var binaries [][]byte
	for _, b := range inner.Binaries {
		binaries = append(binaries, b.Data)
	}

	db, err := unmarshalXML(body, stream, binaries)
	if err != nil {
		return nil, err
	}

	data := db.Data()
	data.CipherID = outer.CipherID
	data.Compression = compressionToModel(outer.Compression)
	data.KDF = kdfImpl
	data.MasterSeed = outer.MasterSeed
	data.SetTransformedKey(transformedKey)
	if outer.PublicCustomData != nil {
		data.PublicCustomData = variantDictToBytesMap(outer.PublicCustomData)
	}
	return db, nil
}

func gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func compressionToModel(c uint32) model.CompressionAlgorithm {
	if c == compressionGzip {
		return model.CompressionGzip
	}
	return model.CompressionNone
}

func variantDictToBytesMap(vd *VariantDict) map[string][]byte {
	out := make(map[string][]byte)
	for _, k := range vd.keys {
		if v, ok := vd.GetBytes(k); ok {
			out[k] = v
		}
	}
	return out
}
