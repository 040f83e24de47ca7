// SPDX-License-Identifier: Apache-2.0

// Package persist implements the atomic save and load path around
// internal/kdbx's pure in-memory codec: temp-file-plus-rename writes,
// optional backup rotation, and serialization of concurrent saves on the
// same Database (spec §5 "Persistence glue", "Ordering guarantees").
package persist

import (
	"os"
	"path/filepath"

	"github.com/keepctl/keepctl/internal/compositekey"
	"github.com/keepctl/keepctl/internal/kdbx"
	"github.com/keepctl/keepctl/internal/kperr"
	"github.com/keepctl/keepctl/internal/model"
)

// Options controls how Save writes a database to disk.
type Options struct {
	// Backup, if true, renames any existing file at path to
	// "<name>.old.kdbx" before the new file is put in place (spec §5
	// "Persisted state layout").
	Backup bool
}

// Result summarizes a completed save.
type Result struct {
	BytesWritten int
	BackupPath   string // empty unless Options.Backup produced one
}

// Open reads path and unlocks it with composite, returning a live
// Database (spec §5 CLI surface: "open(path, composite) → Database or
// error").
func Open(path string, composite *compositekey.CompositeKey) (*model.Database, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, kperr.IoError(path, err)
	}
	return kdbx.Open(raw, composite)
}

// Save serializes db and atomically replaces path with the result (spec
// §5 CLI surface: "save(db, path, {atomic, backup}) → result").
//
// Concurrent saves of the same Database are serialized by the
// Database's own save lock: the second of two concurrent calls waits for
// the first rather than racing it onto the same file. Save writes to a
// sibling "<name>.tmp" file, fsyncs it, optionally rotates any existing
// file at path to "<name>.old.kdbx", then renames the temp file into
// place. On any failure before the final rename, the temp file is
// removed and path is left untouched (spec §5 "Atomicity", "Recovery").
func Save(db *model.Database, path string, opts Options) (*Result, error) {
	db.LockSave()
	defer db.UnlockSave()

	raw, err := kdbx.Save(db)
	if err != nil {
		return nil, err
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, kperr.IoError(tmpPath, err)
	}
	defer os.Remove(tmpPath) // no-op once the rename below has succeeded

	if _, err := f.Write(raw); err != nil {
		f.Close()
		return nil, kperr.IoError(tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, kperr.IoError(tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, kperr.IoError(tmpPath, err)
	}

	res := &Result{BytesWritten: len(raw)}
	if opts.Backup {
		if _, err := os.Stat(path); err == nil {
			backupPath := backupPathFor(path)
			if err := os.Rename(path, backupPath); err != nil {
				return nil, kperr.IoError(backupPath, err)
			}
			res.BackupPath = backupPath
		} else if !os.IsNotExist(err) {
			return nil, kperr.IoError(path, err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, kperr.IoError(path, err)
	}
	return res, nil
}

// backupPathFor derives "<name>.old.kdbx" from path, replacing path's
// extension rather than appending to it (spec §5 "Persisted state
// layout": "<name>.old.kdbx").
func backupPathFor(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + ".old.kdbx"
}
