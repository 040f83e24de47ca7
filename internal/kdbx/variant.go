// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"encoding/binary"

	"github.com/keepctl/keepctl/internal/kperr"
)

// Variant-dictionary value types (spec §4.3 "KDF parameters ... a
// variant-dictionary blob").
const (
	vdTypeEnd    byte = 0x00
	vdTypeUInt32 byte = 0x04
	vdTypeUInt64 byte = 0x05
	vdTypeBool   byte = 0x08
	vdTypeInt32  byte = 0x0C
	vdTypeInt64  byte = 0x0D
	vdTypeString byte = 0x18
	vdTypeBytes  byte = 0x42
)

const vdVersion uint16 = 0x0100

// VariantDict is an ordered key/value map of heterogeneous typed values,
// used to encode KDF and public-custom-data parameters in the outer
// header (spec §4.3).
type VariantDict struct {
	keys   []string
	values map[string]any
}

// NewVariantDict returns an empty VariantDict.
func NewVariantDict() *VariantDict {
	return &VariantDict{values: make(map[string]any)}
}

func (d *VariantDict) set(key string, v any) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *VariantDict) SetUInt32(key string, v uint32) { d.set(key, v) }
func (d *VariantDict) SetUInt64(key string, v uint64) { d.set(key, v) }
func (d *VariantDict) SetBool(key string, v bool)     { d.set(key, v) }
func (d *VariantDict) SetString(key string, v string) { d.set(key, v) }
func (d *VariantDict) SetBytes(key string, v []byte)  { d.set(key, append([]byte(nil), v...)) }

func (d *VariantDict) GetUInt32(key string) (uint32, bool) { v, ok := d.values[key].(uint32); return v, ok }
func (d *VariantDict) GetUInt64(key string) (uint64, bool) { v, ok := d.values[key].(uint64); return v, ok }
func (d *VariantDict) GetBool(key string) (bool, bool)     { v, ok := d.values[key].(bool); return v, ok }
func (d *VariantDict) GetString(key string) (string, bool) { v, ok := d.values[key].(string); return v, ok }
func (d *VariantDict) GetBytes(key string) ([]byte, bool)  { v, ok := d.values[key].([]byte); return v, ok }

// Marshal serializes d into the KDBX variant-dictionary wire format.
func (d *VariantDict) Marshal() []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, vdVersion)

	for _, key := range d.keys {
		v := d.values[key]
		var typ byte
		var payload []byte
		switch val := v.(type) {
		case uint32:
			typ = vdTypeUInt32
			payload = make([]byte, 4)
			binary.LittleEndian.PutUint32(payload, val)
		case uint64:
			typ = vdTypeUInt64
			payload = make([]byte, 8)
			binary.LittleEndian.PutUint64(payload, val)
		case bool:
			typ = vdTypeBool
			payload = []byte{0}
			if val {
				payload[0] = 1
			}
			_ = vdTypeInt32
			_ = vdTypeInt64
		case string:
			typ = vdTypeString
			payload = []byte(val)
		case []byte:
			typ = vdTypeBytes
			payload = val
		}

		buf = append(buf, typ)
		buf = appendUint32LE(buf, uint32(len(key)))
		buf = append(buf, []byte(key)...)
		buf = appendUint32LE(buf, uint32(len(payload)))
		buf = append(buf, payload...)
	}
	buf = append(buf, vdTypeEnd)
	return buf
}

// UnmarshalVariantDict parses the KDBX variant-dictionary wire format.
func UnmarshalVariantDict(b []byte) (*VariantDict, error) {
	if len(b) < 2 {
		return nil, kperr.FormatError("variant dictionary truncated before version field")
	}
	d := NewVariantDict()
	pos := 2 // skip version; readers accept any minor version per spec's upgrade-tolerant header parsing

	for {
		if pos >= len(b) {
			return nil, kperr.FormatError("variant dictionary missing terminator")
		}
		typ := b[pos]
		pos++
		if typ == vdTypeEnd {
			break
		}

		keyLen, np, err := readUint32LE(b, pos)
		if err != nil {
			return nil, err
		}
		pos = np
		if pos+int(keyLen) > len(b) {
			return nil, kperr.FormatError("variant dictionary key overruns buffer")
		}
		key := string(b[pos : pos+int(keyLen)])
		pos += int(keyLen)

		valLen, np, err := readUint32LE(b, pos)
		if err != nil {
			return nil, err
		}
		pos = np
		if pos+int(valLen) > len(b) {
			return nil, kperr.FormatError("variant dictionary value overruns buffer")
		}
		val := b[pos : pos+int(valLen)]
		pos += int(valLen)

		switch typ {
		case vdTypeUInt32:
			if len(val) != 4 {
				return nil, kperr.FormatError("variant dictionary UInt32 has wrong length")
			}
			d.set(key, binary.LittleEndian.Uint32(val))
		case vdTypeUInt64:
			if len(val) != 8 {
				return nil, kperr.FormatError("variant dictionary UInt64 has wrong length")
			}
			d.set(key, binary.LittleEndian.Uint64(val))
		case vdTypeBool:
			if len(val) != 1 {
				return nil, kperr.FormatError("variant dictionary Bool has wrong length")
			}
			d.set(key, val[0] != 0)
		case vdTypeInt32:
			if len(val) != 4 {
				return nil, kperr.FormatError("variant dictionary Int32 has wrong length")
			}
			d.set(key, int32(binary.LittleEndian.Uint32(val)))
		case vdTypeInt64:
			if len(val) != 8 {
				return nil, kperr.FormatError("variant dictionary Int64 has wrong length")
			}
			d.set(key, int64(binary.LittleEndian.Uint64(val)))
		case vdTypeString:
			d.set(key, string(val))
		case vdTypeBytes:
			d.set(key, append([]byte(nil), val...))
		default:
			return nil, kperr.FormatError("variant dictionary has unknown value type")
		}
	}
	return d, nil
}

func appendUint32LE(b []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp, v)
	return append(b, tmp...)
}

func readUint32LE(b []byte, pos int) (uint32, int, error) {
	if pos+4 > len(b) {
		return 0, 0, kperr.FormatError("variant dictionary truncated length field")
	}
	return binary.LittleEndian.Uint32(b[pos : pos+4]), pos + 4, nil
}
