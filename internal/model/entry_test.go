// SPDX-License-Identifier: Apache-2.0

package model

import "testing"

func TestEntryAttributeAccessors(t *testing.T) {
	db := NewDatabase()
	e := NewEntry(db)
	e.Set(AttrTitle, "Bank", false)
	e.Set(AttrPassword, "secret", true)

	if e.Title() != "Bank" {
		t.Fatalf("Title() = %q", e.Title())
	}
	_, protected, ok := e.Get(AttrPassword)
	if !ok || !protected {
		t.Fatal("Password attribute should be present and protected")
	}
}

func TestSnapshotCarriesNoHistory(t *testing.T) {
	db := NewDatabase()
	e := NewEntry(db)
	e.Set(AttrTitle, "v1", false)
	e.PushHistory(nil)
	e.Set(AttrTitle, "v2", false)

	snap := e.Snapshot()
	if len(snap.History) != 0 {
		t.Fatal("snapshot must not carry history of its own")
	}
	if snap.Title() != "v2" {
		t.Fatalf("snapshot should capture current state, got %q", snap.Title())
	}
}

func TestHistoryBoundByItemCount(t *testing.T) {
	db := NewDatabase()
	e := NewEntry(db)
	meta := NewMetadata()
	meta.HistoryMaxItems = 3
	meta.HistoryMaxSize = DefaultHistoryMaxSize

	for i := 0; i < 10; i++ {
		e.Set(AttrTitle, "v", false)
		e.PushHistory(meta)
	}
	if len(e.History) != 3 {
		t.Fatalf("History length = %d, want 3", len(e.History))
	}
}

func TestHistoryBoundByByteSize(t *testing.T) {
	db := NewDatabase()
	e := NewEntry(db)
	meta := NewMetadata()
	meta.HistoryMaxItems = 1000
	meta.HistoryMaxSize = 10

	e.Set(AttrNotes, "0123456789012345", false)
	e.PushHistory(meta)
	e.Set(AttrNotes, "0123456789012345", false)
	e.PushHistory(meta)

	var total int64
	for _, h := range e.History {
		total += h.approximateSize()
	}
	if total > meta.HistoryMaxSize {
		t.Fatalf("history total size %d exceeds bound %d", total, meta.HistoryMaxSize)
	}
}
