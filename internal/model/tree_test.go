// SPDX-License-Identifier: Apache-2.0

package model

import "testing"

func TestAddGroupRejectsCycle(t *testing.T) {
	db := NewDatabase()
	child := NewGroup(db)
	if err := db.AddGroup(db.root, child); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := db.AddGroup(child, db.root); err == nil {
		t.Fatal("expected InvariantViolation attaching root under its own descendant")
	}
}

func TestAddGroupRejectsDuplicateUUID(t *testing.T) {
	db := NewDatabase()
	child := NewGroup(db)
	if err := db.AddGroup(db.root, child); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	dup := *child
	if err := db.AddGroup(db.root, &dup); err == nil {
		t.Fatal("expected InvariantViolation for duplicate group UUID")
	}
}

func TestRemoveGroupCascadesEntries(t *testing.T) {
	db := NewDatabase()
	g := NewGroup(db)
	if err := db.AddGroup(db.root, g); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	e := NewEntry(db)
	if err := db.AddEntry(g, e); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := db.RemoveGroup(g); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}
	if db.findGroup(g.UUID) != nil {
		t.Fatal("group still reachable from tree after removal")
	}
	if e.Group() != nil {
		t.Fatal("entry still attached to removed group")
	}
}

func TestSetGroupParentUpdatesLocationChanged(t *testing.T) {
	db := NewDatabase()
	a := NewGroup(db)
	b := NewGroup(db)
	if err := db.AddGroup(db.root, a); err != nil {
		t.Fatal(err)
	}
	if err := db.AddGroup(db.root, b); err != nil {
		t.Fatal(err)
	}
	before := a.Times.LocationChanged
	if err := db.SetGroupParent(a, b); err != nil {
		t.Fatalf("SetGroupParent: %v", err)
	}
	if a.Parent() != b {
		t.Fatal("group not reparented")
	}
	if !a.Times.LocationChanged.After(before) {
		t.Fatal("LocationChanged not updated on reparent")
	}
}

func TestPermanentlyDeleteGroupRecordsTombstones(t *testing.T) {
	db := NewDatabase()
	g := NewGroup(db)
	if err := db.AddGroup(db.root, g); err != nil {
		t.Fatal(err)
	}
	e := NewEntry(db)
	if err := db.AddEntry(g, e); err != nil {
		t.Fatal(err)
	}
	sub := NewGroup(db)
	if err := db.AddGroup(g, sub); err != nil {
		t.Fatal(err)
	}
	subEntry := NewEntry(db)
	if err := db.AddEntry(sub, subEntry); err != nil {
		t.Fatal(err)
	}
	if err := db.PermanentlyDeleteGroup(g); err != nil {
		t.Fatalf("PermanentlyDeleteGroup: %v", err)
	}
	if !db.ContainsDeletedObject(g.UUID) {
		t.Fatal("missing tombstone for deleted group")
	}
	if !db.ContainsDeletedObject(e.UUID) {
		t.Fatal("missing tombstone for cascaded entry")
	}
	if !db.ContainsDeletedObject(sub.UUID) {
		t.Fatal("missing tombstone for cascaded nested subgroup")
	}
	if !db.ContainsDeletedObject(subEntry.UUID) {
		t.Fatal("missing tombstone for entry inside the cascaded nested subgroup")
	}
}

func TestFindGroupAndEntry(t *testing.T) {
	db := NewDatabase()
	g := NewGroup(db)
	if err := db.AddGroup(db.root, g); err != nil {
		t.Fatal(err)
	}
	e := NewEntry(db)
	if err := db.AddEntry(g, e); err != nil {
		t.Fatal(err)
	}
	if db.FindGroup(g.UUID) != g {
		t.Fatal("FindGroup did not return expected group")
	}
	if db.FindEntry(e.UUID) != e {
		t.Fatal("FindEntry did not return expected entry")
	}
}
