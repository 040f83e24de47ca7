// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"path/filepath"
	"testing"

	"github.com/keepctl/keepctl/internal/model"
)

func newTestDatabase(t *testing.T) *model.Database {
	t.Helper()
	db := model.NewDatabase()

	work := model.NewGroup(db)
	work.Name = "work"
	if err := db.AddGroup(db.Root(), work); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}

	root1 := model.NewEntry(db)
	root1.Set(model.AttrTitle, "personal email", false)
	root1.Set(model.AttrUserName, "alice", false)
	if err := db.AddEntry(db.Root(), root1); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	work1 := model.NewEntry(db)
	work1.Set(model.AttrTitle, "work vpn", false)
	work1.Set(model.AttrUserName, "alice.work", false)
	work1.Set(model.AttrURL, "https://vpn.example.com", false)
	if err := db.AddEntry(work, work1); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	return db
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRebuildAndList(t *testing.T) {
	c := openTestCache(t)
	db := newTestDatabase(t)

	if err := c.Rebuild(db); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	rootEntries, err := c.List("")
	if err != nil {
		t.Fatalf("List(root): %v", err)
	}
	if len(rootEntries) != 1 || rootEntries[0].Title != "personal email" {
		t.Fatalf("List(root) = %+v, want one entry titled %q", rootEntries, "personal email")
	}

	workEntries, err := c.List("work")
	if err != nil {
		t.Fatalf("List(work): %v", err)
	}
	if len(workEntries) != 1 || workEntries[0].Title != "work vpn" {
		t.Fatalf("List(work) = %+v, want one entry titled %q", workEntries, "work vpn")
	}
}

func TestLocateMatchesCaseInsensitively(t *testing.T) {
	c := openTestCache(t)
	db := newTestDatabase(t)
	if err := c.Rebuild(db); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	got, err := c.Locate("VPN")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(got) != 1 || got[0].Title != "work vpn" {
		t.Fatalf("Locate(VPN) = %+v, want one entry titled %q", got, "work vpn")
	}

	got, err = c.Locate("alice")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Locate(alice) = %+v, want 2 matches (both usernames contain alice)", got)
	}
}

func TestRebuildIsIdempotentAndReplacesStaleRows(t *testing.T) {
	c := openTestCache(t)
	db := newTestDatabase(t)
	if err := c.Rebuild(db); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}

	// Remove the work group's entry entirely, then rebuild again: the
	// stale row must not survive.
	work := db.Root().Groups()[0]
	if err := db.RemoveEntry(work.Entries()[0]); err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}

	if err := c.Rebuild(db); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}

	got, err := c.List("work")
	if err != nil {
		t.Fatalf("List(work): %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("List(work) = %+v, want empty after removal", got)
	}
}
