// SPDX-License-Identifier: Apache-2.0

// Package kperr defines the typed error kinds raised by the core engine.
//
// Callers should use [errors.Is] against the sentinel values below rather
// than matching on message text; every exported error wraps one of these
// sentinels with [fmt.Errorf]'s %w verb so the kind survives wrapping.
package kperr

import "errors"

// Sentinel error kinds. See spec §7 for the full description of each.
var (
	// ErrIO covers read/write/truncate/rename failures.
	ErrIO = errors.New("i/o error")

	// ErrFormat covers magic mismatch, unknown version, malformed TLV, or
	// inner-header parse failure.
	ErrFormat = errors.New("format error")

	// ErrCorruption covers header checksum mismatch, HMAC failure, or
	// padding error. Per spec §7, a corrupted file and a wrong key are
	// indistinguishable on the block-HMAC path, so this is the kind
	// reported there.
	ErrCorruption = errors.New("database is corrupted or key is wrong")

	// ErrCrypto covers cipher library failures or KDF parameters out of
	// range.
	ErrCrypto = errors.New("cryptographic operation failed")

	// ErrKey is reported when the composite produces a transformed key
	// that does not verify against the header HMAC.
	ErrKey = errors.New("invalid credentials")

	// ErrInvariant is reported when a mutation would create a cycle,
	// re-parent the root, or reuse a UUID already present.
	ErrInvariant = errors.New("invariant violation")

	// ErrCancelled is reported when a KDF transform is aborted.
	ErrCancelled = errors.New("operation cancelled")
)

// IoError wraps err as an [ErrIO], recording the offending path.
func IoError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &pathError{op: ErrIO, path: path, err: err}
}

// FormatError wraps msg as an [ErrFormat].
func FormatError(msg string) error {
	return &msgError{kind: ErrFormat, msg: msg}
}

// CorruptionError wraps msg as an [ErrCorruption].
func CorruptionError(msg string) error {
	return &msgError{kind: ErrCorruption, msg: msg}
}

// CryptoError wraps err as an [ErrCrypto].
func CryptoError(msg string, err error) error {
	return &msgError{kind: ErrCrypto, msg: msg, err: err}
}

// InvariantError wraps msg as an [ErrInvariant].
func InvariantError(msg string) error {
	return &msgError{kind: ErrInvariant, msg: msg}
}

// KeyError wraps msg as an [ErrKey].
func KeyError(msg string) error {
	return &msgError{kind: ErrKey, msg: msg}
}

// CancelledError wraps msg as an [ErrCancelled].
func CancelledError(msg string) error {
	return &msgError{kind: ErrCancelled, msg: msg}
}

type pathError struct {
	op   error
	path string
	err  error
}

func (e *pathError) Error() string {
	return e.op.Error() + ": " + e.path + ": " + e.err.Error()
}

func (e *pathError) Unwrap() error { return e.op }

func (e *pathError) Cause() error { return e.err }

type msgError struct {
	kind error
	msg  string
	err  error
}

func (e *msgError) Error() string {
	if e.err != nil {
		return e.kind.Error() + ": " + e.msg + ": " + e.err.Error()
	}
	return e.kind.Error() + ": " + e.msg
}

func (e *msgError) Unwrap() error { return e.kind }
