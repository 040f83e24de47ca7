// SPDX-License-Identifier: Apache-2.0

// Package cipher implements the symmetric ciphers selectable for the
// encrypted container payload (spec §4.3): AES-256-CBC, ChaCha20, and
// Twofish-CBC. AES and Twofish use PKCS#7 padding; ChaCha20 is a raw
// keystream with no padding.
package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/twofish"

	"github.com/keepctl/keepctl/internal/kperr"
)

// ID identifies a payload cipher by its 16-byte UUID, matching the values
// used on disk in the header's cipher-UUID field (spec §4.3).
type ID [16]byte

// Well-known cipher UUIDs.
var (
	AES256 = ID{0x31, 0xC1, 0xF2, 0xE6, 0xBF, 0x71, 0x43, 0x50, 0xBE, 0x58, 0x05, 0x21, 0x6A, 0xFC, 0x5A, 0xFF}
	ChaCha20ID = ID{0xD6, 0x03, 0x8A, 0x2B, 0x8B, 0x6F, 0x4C, 0xB5, 0xA5, 0x24, 0x33, 0x9A, 0x31, 0xDB, 0xB5, 0x9A}
	Twofish    = ID{0xAD, 0x68, 0xF2, 0x9F, 0x57, 0x6F, 0x4B, 0xB9, 0xA3, 0x6A, 0xD4, 0x7A, 0xF9, 0x65, 0x34, 0x6C}
)

func (id ID) String() string {
	switch id {
	case AES256:
		return "AES256-CBC"
	case ChaCha20ID:
		return "ChaCha20"
	case Twofish:
		return "Twofish-CBC"
	default:
		return fmt.Sprintf("unknown(% x)", [16]byte(id))
	}
}

// IVSize returns the required IV length in bytes for id, or 0 if id is
// unrecognized.
func IVSize(id ID) int {
	switch id {
	case AES256, Twofish:
		return 16
	case ChaCha20ID:
		return 12
	default:
		return 0
	}
}

// KeySize is the symmetric key length required by every supported cipher.
const KeySize = 32

// Encrypt encrypts plaintext under key and iv using the cipher selected by
// id. For AES256 and Twofish the plaintext is PKCS#7-padded before CBC
// encryption; ChaCha20 is applied directly with no padding.
func Encrypt(id ID, key, iv, plaintext []byte) ([]byte, error) {
	switch id {
	case AES256:
		return cbcEncrypt(aesBlock, key, iv, plaintext)
	case Twofish:
		return cbcEncrypt(twofishBlock, key, iv, plaintext)
	case ChaCha20ID:
		return chachaXOR(key, iv, plaintext)
	default:
		return nil, kperr.CryptoError(fmt.Sprintf("unsupported cipher %s", id), nil)
	}
}

// Decrypt reverses [Encrypt].
func Decrypt(id ID, key, iv, ciphertext []byte) ([]byte, error) {
	switch id {
	case AES256:
		return cbcDecrypt(aesBlock, key, iv, ciphertext)
	case Twofish:
		return cbcDecrypt(twofishBlock, key, iv, ciphertext)
	case ChaCha20ID:
		return chachaXOR(key, iv, ciphertext)
	default:
		return nil, kperr.CryptoError(fmt.Sprintf("unsupported cipher %s", id), nil)
	}
}

type blockCtor func(key []byte) (stdcipher.Block, error)

func aesBlock(key []byte) (stdcipher.Block, error)     { return aes.NewCipher(key) }
func twofishBlock(key []byte) (stdcipher.Block, error) { return twofish.NewCipher(key) }

func cbcEncrypt(newBlock blockCtor, key, iv, plaintext []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, kperr.CryptoError("creating block cipher", err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	stdcipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func cbcDecrypt(newBlock blockCtor, key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, kperr.CryptoError("creating block cipher", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, kperr.CorruptionError("ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(ciphertext))
	stdcipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, block.BlockSize())
}

func chachaXOR(key, iv, data []byte) ([]byte, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key, iv)
	if err != nil {
		return nil, kperr.CryptoError("creating chacha20 stream", err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte(nil), data...), padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, kperr.CorruptionError("invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, kperr.CorruptionError("invalid PKCS#7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, kperr.CorruptionError("invalid PKCS#7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
