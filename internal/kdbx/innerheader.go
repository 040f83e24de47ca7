// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"encoding/binary"

	"github.com/keepctl/keepctl/internal/kperr"
)

const (
	innerFieldEnd           byte = 0
	innerFieldStreamID      byte = 1
	innerFieldStreamKey     byte = 2
	innerFieldBinary        byte = 3
)

// Binary blob flags (spec §4.3 "binary blobs").
const (
	BinaryFlagNone     byte = 0
	BinaryFlagProtected byte = 1
)

// Binary is one inner-header attachment body, indexed by its position of
// appearance (spec §4.3: "any number of binary blobs ... indexed by
// position").
type Binary struct {
	Flags byte
	Data  []byte
}

// InnerHeader is the plaintext-after-decryption, before-decompression TLV
// sequence (spec §4.3 "Inner header").
type InnerHeader struct {
	StreamID  uint32
	StreamKey []byte
	Binaries  []Binary
}

// ReadInnerHeader parses the inner header from the start of b, returning
// the header and the number of bytes consumed.
func ReadInnerHeader(b []byte) (*InnerHeader, int, error) {
	h := &InnerHeader{}
	pos := 0
	for {
		if pos+5 > len(b) {
			return nil, 0, kperr.FormatError("inner header truncated before field")
		}
		id := b[pos]
		size := int(binary.LittleEndian.Uint32(b[pos+1 : pos+5]))
		pos += 5
		if pos+size > len(b) {
			return nil, 0, kperr.FormatError("inner header field overruns buffer")
		}
		field := b[pos : pos+size]
		pos += size

		switch id {
		case innerFieldEnd:
			return h, pos, nil
		case innerFieldStreamID:
			if len(field) != 4 {
				return nil, 0, kperr.FormatError("inner random stream ID must be 4 bytes")
			}
			h.StreamID = binary.LittleEndian.Uint32(field)
		case innerFieldStreamKey:
			h.StreamKey = append([]byte(nil), field...)
		case innerFieldBinary:
			if len(field) < 1 {
				return nil, 0, kperr.FormatError("inner header binary field missing flags byte")
			}
			h.Binaries = append(h.Binaries, Binary{
				Flags: field[0],
				Data:  append([]byte(nil), field[1:]...),
			})
		default:
			// tolerated for forward compatibility
		}
	}
}

// Marshal serializes h back to the inner header wire format.
func (h *InnerHeader) Marshal() []byte {
	var buf []byte
	writeField := func(id byte, v []byte) {
		buf = append(buf, id)
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, uint32(len(v)))
		buf = append(buf, tmp...)
		buf = append(buf, v...)
	}

	idBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(idBuf, h.StreamID)
	writeField(innerFieldStreamID, idBuf)
	writeField(innerFieldStreamKey, h.StreamKey)
	for _, bin := range h.Binaries {
		field := append([]byte{bin.Flags}, bin.Data...)
		writeField(innerFieldBinary, field)
	}
	writeField(innerFieldEnd, nil)
	return buf
}
