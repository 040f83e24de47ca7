// SPDX-License-Identifier: Apache-2.0

package model

import "testing"

func TestResolvedAutoTypeInheritsFromParent(t *testing.T) {
	db := NewDatabase()
	parent := NewGroup(db)
	parent.EnableAutoType = TristateDisabled
	if err := db.AddGroup(db.root, parent); err != nil {
		t.Fatal(err)
	}
	child := NewGroup(db)
	if err := db.AddGroup(parent, child); err != nil {
		t.Fatal(err)
	}

	if child.ResolvedAutoType() {
		t.Fatal("child should inherit disabled auto-type from parent")
	}
	if !db.root.ResolvedSearching() {
		t.Fatal("root should default to enabled searching")
	}
}

func TestMergeModeResolvesUpParentChain(t *testing.T) {
	db := NewDatabase()
	parent := NewGroup(db)
	parent.MergeMode = MergeModeKeepNewer
	if err := db.AddGroup(db.root, parent); err != nil {
		t.Fatal(err)
	}
	child := NewGroup(db)
	if err := db.AddGroup(parent, child); err != nil {
		t.Fatal(err)
	}

	if got := child.ResolvedMergeMode(MergeModeDuplicate); got != MergeModeKeepNewer {
		t.Fatalf("ResolvedMergeMode = %v, want KeepNewer", got)
	}
	if got := db.root.ResolvedMergeMode(MergeModeDuplicate); got != MergeModeDuplicate {
		t.Fatalf("ResolvedMergeMode at root = %v, want db default", got)
	}
}
