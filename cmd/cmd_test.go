// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// runCLI executes rootCmd with args, feeding stdin (one line per prompt)
// and returning combined stdout.
func runCLI(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("running %v: %v\noutput:\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCreateAddShowLsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kdbx")

	runCLI(t, "hunter2\nhunter2\n", "create", "-f", path)

	addOut := runCLI(t, "hunter2\n", "add", "-f", path, "-u", "alice", "-p", "s3cret", "example.com")
	entryUUID := strings.TrimSpace(addOut)
	if entryUUID == "" {
		t.Fatal("add printed no UUID")
	}

	lsOut := runCLI(t, "hunter2\n", "ls", "-f", path)
	if !strings.Contains(lsOut, "example.com") {
		t.Errorf("ls output = %q, want it to contain %q", lsOut, "example.com")
	}

	showOut := runCLI(t, "hunter2\n", "show", "-f", path, entryUUID)
	if !strings.Contains(showOut, "alice") {
		t.Errorf("show output = %q, want it to contain username %q", showOut, "alice")
	}
	if strings.Contains(showOut, "s3cret") {
		t.Error("show output leaked the password without --show-password")
	}

	showRevealed := runCLI(t, "hunter2\n", "show", "-f", path, "--show-password", entryUUID)
	if !strings.Contains(showRevealed, "s3cret") {
		t.Errorf("show --show-password output = %q, want it to contain %q", showRevealed, "s3cret")
	}
}

func TestEditPreservesPriorStateInHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kdbx")

	runCLI(t, "hunter2\nhunter2\n", "create", "-f", path)
	addOut := runCLI(t, "hunter2\n", "add", "-f", path, "-u", "alice", "example.com")
	entryUUID := strings.TrimSpace(addOut)

	runCLI(t, "hunter2\n", "edit", "-f", path, "-u", "bob", entryUUID)

	rootCmd.SetIn(strings.NewReader("hunter2\n"))
	db, _, err := openVault(rootCmd, path)
	if err != nil {
		t.Fatalf("openVault: %v", err)
	}
	e, err := resolveEntry(db, entryUUID)
	if err != nil {
		t.Fatalf("resolveEntry: %v", err)
	}
	if e.UserName() != "bob" {
		t.Errorf("UserName = %q, want %q", e.UserName(), "bob")
	}
	if len(e.History) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(e.History))
	}
	if e.History[0].UserName() != "alice" {
		t.Errorf("History[0].UserName = %q, want %q (the pre-edit value)", e.History[0].UserName(), "alice")
	}
}

func TestRmMovesEntryToRecycleBin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kdbx")

	runCLI(t, "hunter2\nhunter2\n", "create", "-f", path)
	addOut := runCLI(t, "hunter2\n", "add", "-f", path, "example.com")
	entryUUID := strings.TrimSpace(addOut)

	runCLI(t, "hunter2\n", "rm", "-f", path, entryUUID)

	rootCmd.SetIn(strings.NewReader("hunter2\n"))
	db, _, err := openVault(rootCmd, path)
	if err != nil {
		t.Fatalf("openVault: %v", err)
	}
	id, err := uuid.Parse(entryUUID)
	if err != nil {
		t.Fatalf("uuid.Parse(%q): %v", entryUUID, err)
	}
	e := db.FindEntry(id)
	if e == nil {
		t.Fatal("entry disappeared after recycle, want it moved to the recycle bin")
	}
	bin := db.RecycleBin()
	if bin == nil || e.Group() != bin {
		t.Error("entry was not moved into the recycle bin")
	}
}
