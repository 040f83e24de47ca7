// SPDX-License-Identifier: Apache-2.0

package model

import "testing"

func TestRecycleEntryCreatesBinLazily(t *testing.T) {
	db := NewDatabase()
	db.meta.RecycleBinEnabled = true
	g := NewGroup(db)
	if err := db.AddGroup(db.root, g); err != nil {
		t.Fatal(err)
	}
	e := NewEntry(db)
	if err := db.AddEntry(g, e); err != nil {
		t.Fatal(err)
	}

	if db.RecycleBin() != nil {
		t.Fatal("recycle bin should not exist before first use")
	}
	if err := db.RecycleEntry(e); err != nil {
		t.Fatalf("RecycleEntry: %v", err)
	}
	bin := db.RecycleBin()
	if bin == nil {
		t.Fatal("recycle bin was not created")
	}
	if e.Group() != bin {
		t.Fatal("entry was not moved into the recycle bin")
	}
}

func TestRecycleEntryTwiceDeletesPermanently(t *testing.T) {
	db := NewDatabase()
	db.meta.RecycleBinEnabled = true
	e := NewEntry(db)
	if err := db.AddEntry(db.root, e); err != nil {
		t.Fatal(err)
	}
	if err := db.RecycleEntry(e); err != nil {
		t.Fatalf("first recycle: %v", err)
	}
	if err := db.RecycleEntry(e); err != nil {
		t.Fatalf("second recycle: %v", err)
	}
	if db.findEntry(e.UUID) != nil {
		t.Fatal("entry still reachable after second recycle")
	}
	if !db.ContainsDeletedObject(e.UUID) {
		t.Fatal("expected tombstone after permanent delete")
	}
}

func TestEmptyRecycleBinKeepsBinButTombstonesDescendants(t *testing.T) {
	db := NewDatabase()
	db.meta.RecycleBinEnabled = true
	e := NewEntry(db)
	if err := db.AddEntry(db.root, e); err != nil {
		t.Fatal(err)
	}
	if err := db.RecycleEntry(e); err != nil {
		t.Fatal(err)
	}
	sub := NewGroup(db)
	bin := db.RecycleBin()
	if err := db.AddGroup(bin, sub); err != nil {
		t.Fatal(err)
	}
	subEntry := NewEntry(db)
	if err := db.AddEntry(sub, subEntry); err != nil {
		t.Fatal(err)
	}
	binUUID := bin.UUID

	if err := db.EmptyRecycleBin(); err != nil {
		t.Fatalf("EmptyRecycleBin: %v", err)
	}

	still := db.RecycleBin()
	if still == nil {
		t.Fatal("recycle bin should persist after emptying, only its contents removed")
	}
	if still.UUID != binUUID {
		t.Fatal("recycle bin was replaced with a new group instead of being reused")
	}
	if len(still.Entries()) != 0 || len(still.Groups()) != 0 {
		t.Fatal("recycle bin should be empty after EmptyRecycleBin")
	}
	if !db.ContainsDeletedObject(e.UUID) {
		t.Fatal("expected tombstone for entry that was in the recycle bin")
	}
	if !db.ContainsDeletedObject(sub.UUID) {
		t.Fatal("expected tombstone for subgroup that was in the recycle bin")
	}
	if !db.ContainsDeletedObject(subEntry.UUID) {
		t.Fatal("expected tombstone for entry inside the recycled subgroup")
	}
	if db.ContainsDeletedObject(binUUID) {
		t.Fatal("the recycle bin group itself must not be tombstoned")
	}
}
