// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"

	"github.com/keepctl/keepctl/internal/kperr"
)

// hmacKeySize matches the transformed-master-key-derived HMAC key size
// used throughout the block stream (spec §4.3 "Header integrity").
const hmacKeySize = 64

// deriveHMACBaseKey computes SHA-512(master_seed ‖ transformed_master_key
// ‖ 0x01), the base key from which every block's (and the header's) HMAC
// key is derived (spec §4.3).
func deriveHMACBaseKey(masterSeed, transformedKey []byte) []byte {
	h := sha512.New()
	h.Write(masterSeed)
	h.Write(transformedKey)
	h.Write([]byte{0x01})
	return h.Sum(nil)
}

// deriveBlockHMACKey computes SHA-512(block_index_u64_le ‖ hmac_base_key),
// the per-block HMAC key (spec §4.3 "Block stream").
func deriveBlockHMACKey(base []byte, blockIndex uint64) []byte {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], blockIndex)
	h := sha512.New()
	h.Write(idx[:])
	h.Write(base)
	return h.Sum(nil)
}

// headerHMACKey derives the special-cased block-index-max HMAC key used
// to authenticate the outer header itself (spec §4.3: "a 32-byte
// HMAC-SHA-256 of the header using a derived HMAC key").
func headerHMACKey(base []byte) []byte {
	return deriveBlockHMACKey(base, ^uint64(0))
}

// hmacRaw computes HMAC-SHA-256(key, data) directly, used for the header
// HMAC which (unlike block HMACs) covers the header bytes with no index
// or length framing.
func hmacRaw(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// WriteBlockStream frames plaintext ciphertext into the HMAC-authenticated
// block stream format (spec §4.3 "Block stream"), using blockSize-byte
// blocks (the last one may be shorter), terminated by a zero-size block.
func WriteBlockStream(ciphertext []byte, hmacBase []byte, blockSize int) []byte {
	var out []byte
	var index uint64
	for off := 0; off < len(ciphertext); off += blockSize {
		end := off + blockSize
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		out = append(out, marshalBlock(ciphertext[off:end], hmacBase, index)...)
		index++
	}
	out = append(out, marshalBlock(nil, hmacBase, index)...)
	return out
}

func marshalBlock(data []byte, hmacBase []byte, index uint64) []byte {
	key := deriveBlockHMACKey(hmacBase, index)
	mac := blockMAC(key, index, data)

	buf := make([]byte, 0, 32+4+len(data))
	buf = append(buf, mac...)
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(data)))
	buf = append(buf, sizeBuf...)
	buf = append(buf, data...)
	return buf
}

func blockMAC(key []byte, index uint64, data []byte) []byte {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(data)))

	mac := hmac.New(sha256.New, key)
	mac.Write(idx[:])
	mac.Write(sizeBuf)
	mac.Write(data)
	return mac.Sum(nil)
}

// ReadBlockStream reads and authenticates the HMAC block stream starting
// at the beginning of b, returning the concatenated ciphertext and the
// number of bytes consumed. Any HMAC mismatch is reported as
// [kperr.ErrCorruption] (spec §7: "tampered or wrong key cannot be
// distinguished on the block-HMAC path").
func ReadBlockStream(b []byte, hmacBase []byte) ([]byte, int, error) {
	var out []byte
	var index uint64
	pos := 0
	for {
		if pos+36 > len(b) {
			return nil, 0, kperr.FormatError("block stream truncated before block header")
		}
		mac := b[pos : pos+32]
		size := binary.LittleEndian.Uint32(b[pos+32 : pos+36])
		pos += 36
		if pos+int(size) > len(b) {
			return nil, 0, kperr.CorruptionError("block stream block overruns buffer")
		}
		data := b[pos : pos+int(size)]
		pos += int(size)

		key := deriveBlockHMACKey(hmacBase, index)
		want := blockMAC(key, index, data)
		if subtle.ConstantTimeCompare(mac, want) != 1 {
			return nil, 0, kperr.CorruptionError("block HMAC mismatch: database is corrupted or key is wrong")
		}

		if size == 0 {
			break
		}
		out = append(out, data...)
		index++
	}
	return out, pos, nil
}
