// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"

	"golang.org/x/sync/errgroup"

	"github.com/keepctl/keepctl/internal/cipher"
	"github.com/keepctl/keepctl/internal/kdf"
	"github.com/keepctl/keepctl/internal/kperr"
	"github.com/keepctl/keepctl/internal/model"
	"github.com/keepctl/keepctl/internal/randsrc"
)

// DefaultBlockSize is the plaintext chunk size the block stream writer
// frames ciphertext into (spec §4.3 "Block stream").
const DefaultBlockSize = 1024 * 1024

// Save serializes db to the KDBX4 wire format using its already-derived
// transformed master key (db.Data().TransformedKey()). Callers must have
// run the KDF (directly or via Open) before calling Save.
func Save(db *model.Database) ([]byte, error) {
	data := db.Data()
	transformedKey := data.TransformedKey()
	if transformedKey == nil {
		return nil, kperr.CryptoError("cannot save: no transformed master key derived", nil)
	}

	masterSeed, err := randsrc.Bytes(kdf.SeedSize)
	if err != nil {
		return nil, kperr.IoError("generating master seed", err)
	}
	data.MasterSeed = masterSeed

	iv, err := randsrc.Bytes(cipher.IVSize(data.CipherID))
	if err != nil {
		return nil, kperr.IoError("generating encryption IV", err)
	}

	kdfParams, err := kdfToVariantDict(data.KDF)
	if err != nil {
		return nil, err
	}

	outer := &OuterHeader{
		VersionMinor: 1,
		CipherID:     data.CipherID,
		Compression:  compressionFromModel(data.Compression),
		MasterSeed:   masterSeed,
		EncryptionIV: iv,
		KDF:          kdfParams,
	}
	if len(data.PublicCustomData) > 0 {
		pcd := NewVariantDict()
		for k, v := range data.PublicCustomData {
			pcd.SetBytes(k, v)
		}
		outer.PublicCustomData = pcd
	}
	headerBytes := outer.Marshal()

	hmacBase := deriveHMACBaseKey(masterSeed, transformedKey)

	streamKey, err := randsrc.Bytes(64)
	if err != nil {
		return nil, kperr.IoError("generating inner random stream key", err)
	}
	stream, err := NewProtectedStream(StreamChaCha20, streamKey)
	if err != nil {
		return nil, err
	}

	refByName, binaries := collectAttachments(db.Root())

	xmlBytes, err := marshalXML(db, stream, refByName)
	if err != nil {
		return nil, err
	}

	inner := &InnerHeader{StreamID: StreamChaCha20, StreamKey: streamKey}
	for _, data := range binaries {
		inner.Binaries = append(inner.Binaries, Binary{Data: data})
	}
	innerBytes := inner.Marshal()

	payload, err := compressPayload(innerBytes, xmlBytes, data.Compression)
	if err != nil {
		return nil, err
	}

	key := sha256Concat(masterSeed, transformedKey)
	ciphertext, err := cipher.Encrypt(data.CipherID, key, iv, payload)
	if err != nil {
		return nil, kperr.CryptoError("encrypting payload", err)
	}

	blockStream := WriteBlockStream(ciphertext, hmacBase, DefaultBlockSize)

	headerSHA := sha256.Sum256(headerBytes)
	headerHMAC := hmacRaw(headerHMACKey(hmacBase), headerBytes)

	out := bytes.NewBuffer(nil)
	out.Write(headerBytes)
	out.Write(headerSHA[:])
	out.Write(headerHMAC)
	out.Write(blockStream)
	return out.Bytes(), nil
}

// attachmentOccurrence names one (entry, attachment-name) appearance in
// the tree, used only to build the name→binary-index reference map.
type attachmentOccurrence struct {
	name string
	data []byte
}

// collectAttachments walks the tree depth-first collecting every
// attachment, hashes each body concurrently (bounded by an errgroup —
// this is the walk's only CPU-bound step on large attachment sets), and
// folds content-identical bodies into a single inner-header binary slot
// regardless of the name(s) they appear under (spec §3 "Entry":
// "attachment map ... optionally referenced by hash to deduplicate").
// It returns a map from attachment name to its binary index and the
// ordered, deduplicated binary bodies themselves.
func collectAttachments(root *model.Group) (map[string]int, [][]byte) {
	var occ []attachmentOccurrence
	var walk func(g *model.Group)
	walk = func(g *model.Group) {
		for _, e := range g.Entries() {
			for _, name := range sortedAttachmentNames(e.Attachments) {
				occ = append(occ, attachmentOccurrence{name: name, data: e.Attachments[name].Data})
			}
		}
		for _, c := range g.Groups() {
			walk(c)
		}
	}
	walk(root)

	hashes := make([][32]byte, len(occ))
	var eg errgroup.Group
	eg.SetLimit(4)
	for i, o := range occ {
		i, o := i, o
		eg.Go(func() error {
			hashes[i] = sha256.Sum256(o.data)
			return nil
		})
	}
	_ = eg.Wait() // sha256.Sum256 cannot fail; errgroup only bounds concurrency here

	refByName := make(map[string]int, len(occ))
	indexByHash := make(map[[32]byte]int, len(occ))
	var binaries [][]byte
	for i, o := range occ {
		if _, ok := refByName[o.name]; ok {
			continue // a name already resolved to a slot by an earlier occurrence
		}
		idx, ok := indexByHash[hashes[i]]
		if !ok {
			idx = len(binaries)
			binaries = append(binaries, o.data)
			indexByHash[hashes[i]] = idx
		}
		refByName[o.name] = idx
	}
	return refByName, binaries
}

// compressPayload optionally gzip-compresses the XML body and prepends the
// uncompressed inner header, the layout the reader parses: inner header
// first, then the (possibly gzipped) XML (spec §4.3 "Payload").
func compressPayload(innerHeader, xmlBody []byte, compression model.CompressionAlgorithm) ([]byte, error) {
	body := xmlBody
	if compression == model.CompressionGzip {
		buf := bytes.NewBuffer(nil)
		zw := gzip.NewWriter(buf)
		if _, err := zw.Write(xmlBody); err != nil {
			return nil, kperr.IoError("compressing payload", err)
		}
		if err := zw.Close(); err != nil {
			return nil, kperr.IoError("compressing payload", err)
		}
		body = buf.Bytes()
	}
	return append(append([]byte(nil), innerHeader...), body...), nil
}

func compressionFromModel(c model.CompressionAlgorithm) uint32 {
	if c == model.CompressionGzip {
		return compressionGzip
	}
	return compressionNone
}

func sha256Concat(a, b []byte) []byte {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}

