// SPDX-License-Identifier: Apache-2.0

package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultRecycleBinName is the name given to a recycle bin group created
// on demand (spec §4.4 "recycle bin").
const DefaultRecycleBinName = "Recycle Bin"

// RecycleBin returns the database's recycle bin group, or nil if one has
// not been created yet.
func (db *Database) RecycleBin() *Group {
	if db.meta.RecycleBinUUID == uuid.Nil {
		return nil
	}
	return db.findGroup(db.meta.RecycleBinUUID)
}

// ensureRecycleBin returns the database's recycle bin group, creating it
// as a direct child of root on first use (spec §4.4: "the recycle bin is
// created lazily the first time something is recycled").
func (db *Database) ensureRecycleBin() *Group {
	if bin := db.RecycleBin(); bin != nil {
		return bin
	}
	bin := newGroup(db, nil)
	bin.Name = DefaultRecycleBinName
	bin.IconID = recycleBinIconID
	_ = db.AddGroup(db.root, bin)
	db.meta.RecycleBinUUID = bin.UUID
	db.meta.RecycleBinChanged = time.Now()
	return bin
}

// recycleBinIconID is the conventional KeePass icon index for a trash can.
const recycleBinIconID = 43

// RecycleEntry moves entry into the recycle bin, creating the bin if
// necessary. If entry is already inside the recycle bin, this permanently
// deletes it instead and records a tombstone (spec §4.4: "recycling an
// entry already in the recycle bin deletes it for good").
func (db *Database) RecycleEntry(entry *Entry) error {
	if db.isInRecycleBin(entry.group) {
		return db.PermanentlyDeleteEntry(entry)
	}
	bin := db.ensureRecycleBin()
	return db.SetEntryParent(entry, bin)
}

// RecycleGroup moves group (and its full subtree) into the recycle bin.
// If group is already inside the recycle bin, this permanently deletes it
// instead.
func (db *Database) RecycleGroup(group *Group) error {
	if db.isInRecycleBin(group.parent) {
		return db.PermanentlyDeleteGroup(group)
	}
	bin := db.ensureRecycleBin()
	if bin == group || bin.isAncestorOf(group) {
		return nil
	}
	return db.SetGroupParent(group, bin)
}

func (db *Database) isInRecycleBin(g *Group) bool {
	bin := db.RecycleBin()
	if bin == nil || g == nil {
		return false
	}
	for cur := g; cur != nil; cur = cur.parent {
		if cur == bin {
			return true
		}
	}
	return false
}

// EmptyRecycleBin permanently deletes every descendant group and entry of
// the recycle bin, recording one tombstone per descendant, but leaves the
// (now-empty) recycle bin group itself in place so a later recycle reuses
// the same UUID instead of spawning a new bin (spec §4.4 "emptyRecycleBin":
// "records one tombstone per descendant and empties the recycle-bin group").
func (db *Database) EmptyRecycleBin() error {
	bin := db.RecycleBin()
	if bin == nil {
		return nil
	}
	at := time.Now()
	for _, e := range append([]*Entry(nil), bin.entries...) {
		if err := db.RemoveEntry(e); err != nil {
			return err
		}
		db.AddTombstone(e.UUID, at)
	}
	for _, c := range append([]*Group(nil), bin.children...) {
		if err := db.PermanentlyDeleteGroup(c); err != nil {
			return err
		}
	}
	db.meta.RecycleBinChanged = at
	return nil
}
