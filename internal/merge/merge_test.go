// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"testing"
	"time"

	"github.com/keepctl/keepctl/internal/model"
)

// cloneDatabase produces an independent copy of db by round-tripping
// through the same snapshot machinery the merge engine itself uses, so
// that mutating one replica never affects the other.
func cloneDatabase(t *testing.T, db *model.Database) *model.Database {
	t.Helper()
	cp := model.NewDatabase()
	cp.Data().CipherID = db.Data().CipherID

	copyGroup(t, cp, cp.Root(), db.Root())
	cp.MergeTombstones(db.DeletedObjects())
	return cp
}

func copyGroup(t *testing.T, db *model.Database, dst, src *model.Group) {
	t.Helper()
	dst.Name = src.Name
	dst.Times = src.Times
	dst.MergeMode = src.MergeMode

	for _, se := range src.Entries() {
		e := se.Snapshot()
		if err := db.AddEntry(dst, e); err != nil {
			t.Fatalf("AddEntry: %v", err)
		}
	}
	for _, sg := range src.Groups() {
		ng := model.NewGroup(db)
		ng.UUID = sg.UUID
		if err := db.AddGroup(dst, ng); err != nil {
			t.Fatalf("AddGroup: %v", err)
		}
		copyGroup(t, db, ng, sg)
	}
}

func newEntry(db *model.Database, title string, at time.Time) *model.Entry {
	e := model.NewEntry(db)
	e.Set(model.AttrTitle, title, false)
	e.Times.LastModificationTime = at
	return e
}

// TestMergeAddsNewEntries covers spec §8 scenario 1: an entry created only
// on the source side is added to target.
func TestMergeAddsNewEntries(t *testing.T) {
	target := model.NewDatabase()
	source := cloneDatabase(t, target)

	e := newEntry(source, "new on source", time.Now())
	if err := source.AddEntry(source.Root(), e); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	res, err := Merge(target, source, model.MergeModeSynchronize)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.EntriesAdded != 1 {
		t.Fatalf("EntriesAdded = %d, want 1", res.EntriesAdded)
	}
	if target.FindEntry(e.UUID) == nil {
		t.Fatal("entry not present in target after merge")
	}
}

// TestMergeKeepNewerIgnoresOlderChange verifies that under KeepNewer a
// source-side edit older than target's current state is not applied.
func TestMergeKeepNewerIgnoresOlderChange(t *testing.T) {
	target := model.NewDatabase()
	base := time.Now().Add(-time.Hour)
	e := newEntry(target, "original", base)
	if err := target.AddEntry(target.Root(), e); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	source := cloneDatabase(t, target)

	// target advances.
	te := target.FindEntry(e.UUID)
	te.PushHistory(target.Metadata())
	te.Set(model.AttrTitle, "changed on target", false)
	te.Times.LastModificationTime = time.Now()

	// source is stale (older modification time than target's current state).
	se := source.FindEntry(e.UUID)
	se.Set(model.AttrTitle, "stale edit", false)
	se.Times.LastModificationTime = base.Add(time.Minute)

	if _, err := Merge(target, source, model.MergeModeKeepNewer); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	got := target.FindEntry(e.UUID)
	if v, _, _ := got.Get(model.AttrTitle); v != "changed on target" {
		t.Errorf("Title = %q, want target's newer value preserved", v)
	}
}

// TestMergeSynchronizeRenameVsPasswordChange covers spec §8 scenario 4: a
// rename on target and a password change on source, at different times,
// reconcile under Synchronize by keeping the newest edit live and folding
// the other into history.
func TestMergeSynchronizeRenameVsPasswordChange(t *testing.T) {
	target := model.NewDatabase()
	base := time.Now().Add(-time.Hour)
	e := newEntry(target, "example.com", base)
	e.Set(model.AttrPassword, "old-password", true)
	if err := target.AddEntry(target.Root(), e); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	source := cloneDatabase(t, target)

	te := target.FindEntry(e.UUID)
	te.PushHistory(target.Metadata())
	te.Set(model.AttrTitle, "renamed.example.com", false)
	renameAt := base.Add(10 * time.Minute)
	te.Times.LastModificationTime = renameAt

	se := source.FindEntry(e.UUID)
	se.PushHistory(source.Metadata())
	se.Set(model.AttrPassword, "new-password", true)
	passwordChangeAt := base.Add(20 * time.Minute)
	se.Times.LastModificationTime = passwordChangeAt

	res, err := Merge(target, source, model.MergeModeSynchronize)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.EntriesUpdated == 0 {
		t.Fatal("expected EntriesUpdated > 0")
	}

	got := target.FindEntry(e.UUID)
	if v, _, _ := got.Get(model.AttrPassword); v != "new-password" {
		t.Errorf("Password = %q, want new-password (newest edit live)", v)
	}
	foundRename := false
	for _, h := range got.History {
		if v, _, _ := h.Get(model.AttrTitle); v == "renamed.example.com" {
			foundRename = true
		}
	}
	if !foundRename {
		t.Error("expected the rename to survive as a history snapshot")
	}
}

// TestMergeTombstoneWinsOverStaleModification covers spec §8 scenario 5: a
// permanent delete on source at t=20 beats a target-side modification at
// t=15, and the tombstone it produces carries the original deletion time,
// not the time the merge ran.
func TestMergeTombstoneWinsOverStaleModification(t *testing.T) {
	target := model.NewDatabase()
	base := time.Now().Add(-time.Hour)
	e := newEntry(target, "doomed", base)
	if err := target.AddEntry(target.Root(), e); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	source := cloneDatabase(t, target)

	// target modifies at t=15 (relative).
	te := target.FindEntry(e.UUID)
	te.Set(model.AttrNotes, "edited after deletion elsewhere", false)
	te.Times.LastModificationTime = base.Add(15 * time.Minute)

	// source permanently deletes at t=20 (relative), with an explicit,
	// earlier-than-merge-time deletion stamp.
	se := source.FindEntry(e.UUID)
	deletionTime := base.Add(20 * time.Minute)
	if err := source.RemoveEntry(se); err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}
	source.AddTombstone(e.UUID, deletionTime)

	res, err := Merge(target, source, model.MergeModeSynchronize)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.TombstonesApplied != 1 {
		t.Fatalf("TombstonesApplied = %d, want 1", res.TombstonesApplied)
	}
	if target.FindEntry(e.UUID) != nil {
		t.Fatal("entry still present in target, want tombstoned")
	}
	if !target.ContainsDeletedObject(e.UUID) {
		t.Fatal("target has no tombstone for deleted entry")
	}
	for _, d := range target.DeletedObjects() {
		if d.UUID == e.UUID && !d.DeletionTime.Equal(deletionTime) {
			t.Errorf("DeletionTime = %v, want original %v (not merge wall-clock time)", d.DeletionTime, deletionTime)
		}
	}
}

// TestMergeTombstoneCascadesToNestedSubgroup covers spec §4.5/§8: a group
// tombstoned on source, with its own subgroup and entry still live there
// (source never recorded its own cascade), must have every descendant
// tombstoned in target too, or the subgroup would resurrect on the next
// merge from a replica that still has it.
func TestMergeTombstoneCascadesToNestedSubgroup(t *testing.T) {
	target := model.NewDatabase()
	g := model.NewGroup(target)
	if err := target.AddGroup(target.Root(), g); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	sub := model.NewGroup(target)
	if err := target.AddGroup(g, sub); err != nil {
		t.Fatalf("AddGroup sub: %v", err)
	}
	subEntry := model.NewEntry(target)
	subEntry.Set(model.AttrTitle, "nested", false)
	if err := target.AddEntry(sub, subEntry); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	source := cloneDatabase(t, target)

	// source deletes g wholesale (as a naive caller might, without walking
	// the subtree itself) and records only g's own tombstone.
	deletionTime := time.Now().Add(time.Minute)
	sg := source.FindGroup(g.UUID)
	if err := source.RemoveGroup(sg); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}
	source.AddTombstone(g.UUID, deletionTime)

	if _, err := Merge(target, source, model.MergeModeSynchronize); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if target.FindGroup(g.UUID) != nil {
		t.Error("deleted group still present in target")
	}
	if target.FindGroup(sub.UUID) != nil {
		t.Error("nested subgroup still present in target, want cascaded removal")
	}
	if target.FindEntry(subEntry.UUID) != nil {
		t.Error("entry inside nested subgroup still present in target")
	}
	if !target.ContainsDeletedObject(sub.UUID) {
		t.Error("nested subgroup missing a tombstone, would resurrect on a later merge")
	}
	if !target.ContainsDeletedObject(subEntry.UUID) {
		t.Error("entry inside nested subgroup missing a tombstone")
	}
}

// TestMergeIdempotent verifies that merging the same source twice produces
// the same result the second time as a no-op (spec §4.5: merge is
// idempotent).
func TestMergeIdempotent(t *testing.T) {
	target := model.NewDatabase()
	e := newEntry(target, "stable", time.Now())
	if err := target.AddEntry(target.Root(), e); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	source := cloneDatabase(t, target)

	if _, err := Merge(target, source, model.MergeModeSynchronize); err != nil {
		t.Fatalf("first Merge: %v", err)
	}
	firstHistoryLen := len(target.FindEntry(e.UUID).History)

	res, err := Merge(target, source, model.MergeModeSynchronize)
	if err != nil {
		t.Fatalf("second Merge: %v", err)
	}
	if res.EntriesAdded != 0 || res.GroupsAdded != 0 {
		t.Errorf("second merge was not a no-op: %+v", res)
	}
	if got := len(target.FindEntry(e.UUID).History); got != firstHistoryLen {
		t.Errorf("history length changed on idempotent re-merge: %d -> %d", firstHistoryLen, got)
	}
}

// TestMergeDuplicateSkipsIdenticalContent verifies that Duplicate mode does
// not create a copy when source and target already agree.
func TestMergeDuplicateSkipsIdenticalContent(t *testing.T) {
	target := model.NewDatabase()
	e := newEntry(target, "same everywhere", time.Now())
	if err := target.AddEntry(target.Root(), e); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	source := cloneDatabase(t, target)

	res, err := Merge(target, source, model.MergeModeDuplicate)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.EntriesDuplicated != 0 {
		t.Errorf("EntriesDuplicated = %d, want 0 for identical content", res.EntriesDuplicated)
	}
	if len(target.Root().Entries()) != 1 {
		t.Errorf("got %d entries, want 1 (no spurious duplicate)", len(target.Root().Entries()))
	}
}
