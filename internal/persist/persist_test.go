// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keepctl/keepctl/internal/cipher"
	"github.com/keepctl/keepctl/internal/compositekey"
	"github.com/keepctl/keepctl/internal/kdf"
	"github.com/keepctl/keepctl/internal/model"
)

func newTestDatabase(t *testing.T, password string) (*model.Database, *compositekey.CompositeKey) {
	t.Helper()
	ck := compositekey.New()
	ck.Add(compositekey.PasswordComponent{Password: password})

	db := model.NewDatabase()
	db.Metadata().Name = "persist test"

	entry := model.NewEntry(db)
	entry.Set(model.AttrTitle, "example.com", false)
	entry.Set(model.AttrPassword, "hunter2", true)
	if err := db.AddEntry(db.Root(), entry); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	data := db.Data()
	data.CipherID = cipher.AES256
	data.Compression = model.CompressionGzip
	a := &kdf.Argon2{Memory: 8 * 1024, Iterations: 1, Parallelism: 1}
	if err := a.RandomizeSeed(); err != nil {
		t.Fatalf("RandomizeSeed: %v", err)
	}
	data.KDF = a

	rawKey, err := ck.RawKey()
	if err != nil {
		t.Fatalf("RawKey: %v", err)
	}
	transformed, err := a.Transform(t.Context(), rawKey)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	data.SetTransformedKey(transformed)
	return db, ck
}

func TestSaveThenOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kdbx")
	db, ck := newTestDatabase(t, "correct horse battery staple")

	res, err := Save(db, path, Options{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.BytesWritten == 0 {
		t.Error("BytesWritten = 0")
	}
	if res.BackupPath != "" {
		t.Errorf("BackupPath = %q, want empty (no prior file)", res.BackupPath)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	got, err := Open(path, ck)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.Metadata().Name != "persist test" {
		t.Errorf("Name = %q, want %q", got.Metadata().Name, "persist test")
	}
}

func TestSaveBackupRotatesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kdbx")
	db, ck := newTestDatabase(t, "correct horse battery staple")

	if _, err := Save(db, path, Options{}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	firstContents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	entry := model.NewEntry(db)
	entry.Set(model.AttrTitle, "second.example.com", false)
	if err := db.AddEntry(db.Root(), entry); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	res, err := Save(db, path, Options{Backup: true})
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if res.BackupPath == "" {
		t.Fatal("BackupPath is empty, want a rotated backup")
	}
	backupContents, err := os.ReadFile(res.BackupPath)
	if err != nil {
		t.Fatalf("ReadFile backup: %v", err)
	}
	if string(backupContents) != string(firstContents) {
		t.Error("backup file does not match the pre-save contents")
	}

	got, err := Open(path, ck)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(got.Root().Entries()) != 2 {
		t.Errorf("got %d entries, want 2", len(got.Root().Entries()))
	}
}

func TestSaveWithoutBackupLeavesNoOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kdbx")
	db, _ := newTestDatabase(t, "correct horse battery staple")

	if _, err := Save(db, path, Options{}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if _, err := Save(db, path, Options{}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "vault.old.kdbx")); !os.IsNotExist(err) {
		t.Errorf("unexpected backup file present: %v", err)
	}
}

func TestOpenMissingFileReportsIoError(t *testing.T) {
	dir := t.TempDir()
	_, ck := newTestDatabase(t, "x")
	_, err := Open(filepath.Join(dir, "missing.kdbx"), ck)
	if err == nil {
		t.Fatal("Open of missing file succeeded, want error")
	}
}
