// SPDX-License-Identifier: Apache-2.0

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/keepctl/keepctl/internal/kperr"
)

// AddGroup attaches child to parent, assigning child's database
// back-reference to db. It is an InvariantViolation to attach a group
// whose UUID already exists anywhere in the tree, or to attach a group to
// one of its own descendants (spec §3 "Group": "a Group may not be its
// own ancestor").
func (db *Database) AddGroup(parent, child *Group) error {
	if db.findGroup(child.UUID) != nil {
		return kperr.InvariantError("group UUID already present in the tree")
	}
	if child.isAncestorOf(parent) {
		return kperr.InvariantError("cannot attach a group under its own descendant")
	}
	db.emit(Event{Kind: EventAboutToAddGroup, Group: child})
	child.db = db
	child.parent = parent
	parent.children = append(parent.children, child)
	db.emit(Event{Kind: EventGroupAdded, Group: child})
	db.notifyModified()
	return nil
}

// RemoveGroup detaches child from its parent. Removal cascades: every
// entry in child's subtree is detached from its group (its Group returns
// nil), while child's subgroups stay under child; no tombstones are
// recorded — use PermanentlyDeleteGroup for that (spec §3
// "Lifecycle": "removing a Group cascades ownership of its descendants").
func (db *Database) RemoveGroup(child *Group) error {
	if child.IsRoot() {
		return kperr.InvariantError("cannot remove the root group")
	}
	parent := child.parent
	db.emit(Event{Kind: EventAboutToRemoveGroup, Group: child})
	idx := indexOfGroup(parent.children, child)
	if idx < 0 {
		return kperr.InvariantError("group is not a child of its recorded parent")
	}
	parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
	child.parent = nil
	var detach func(g *Group)
	detach = func(g *Group) {
		for _, e := range g.entries {
			e.group = nil
		}
		g.entries = nil
		for _, c := range g.children {
			detach(c)
		}
	}
	detach(child)
	db.emit(Event{Kind: EventGroupRemoved, Group: child})
	db.notifyModified()
	return nil
}

// SetGroupParent re-parents an existing group to newParent, updating
// LocationChanged on both the move and the invariant checks that forbid
// cycles or re-parenting the root (spec §3 "Lifecycle").
func (db *Database) SetGroupParent(g, newParent *Group) error {
	if g.IsRoot() {
		return kperr.InvariantError("cannot re-parent the root group")
	}
	if g.isAncestorOf(newParent) {
		return kperr.InvariantError("cannot move a group under its own descendant")
	}
	oldParent := g.parent
	if oldParent == newParent {
		return nil
	}
	idx := indexOfGroup(oldParent.children, g)
	if idx < 0 {
		return kperr.InvariantError("group is not a child of its recorded parent")
	}
	oldParent.children = append(oldParent.children[:idx], oldParent.children[idx+1:]...)
	newParent.children = append(newParent.children, g)
	g.parent = newParent
	g.Times.Relocate()
	db.notifyModified()
	return nil
}

// AddEntry attaches entry to group.
func (db *Database) AddEntry(group *Group, entry *Entry) error {
	if db.findEntry(entry.UUID) != nil {
		return kperr.InvariantError("entry UUID already present in the tree")
	}
	db.emit(Event{Kind: EventAboutToAddEntry, Entry: entry})
	entry.db = db
	entry.group = group
	group.entries = append(group.entries, entry)
	db.emit(Event{Kind: EventEntryAdded, Entry: entry})
	db.notifyModified()
	return nil
}

// RemoveEntry detaches entry from its group without recording a
// tombstone.
func (db *Database) RemoveEntry(entry *Entry) error {
	group := entry.group
	if group == nil {
		return kperr.InvariantError("entry is not attached to a group")
	}
	db.emit(Event{Kind: EventAboutToRemoveEntry, Entry: entry})
	idx := indexOfEntry(group.entries, entry)
	if idx < 0 {
		return kperr.InvariantError("entry is not a child of its recorded group")
	}
	group.entries = append(group.entries[:idx], group.entries[idx+1:]...)
	entry.group = nil
	db.emit(Event{Kind: EventEntryRemoved, Entry: entry})
	db.notifyModified()
	return nil
}

// SetEntryParent moves entry to newGroup, updating LocationChanged (spec
// §3 "Lifecycle": "re-parenting uses setParent which updates both sides
// and location-changed").
func (db *Database) SetEntryParent(entry *Entry, newGroup *Group) error {
	oldGroup := entry.group
	if oldGroup == newGroup {
		return nil
	}
	if oldGroup != nil {
		idx := indexOfEntry(oldGroup.entries, entry)
		if idx < 0 {
			return kperr.InvariantError("entry is not a child of its recorded group")
		}
		oldGroup.entries = append(oldGroup.entries[:idx], oldGroup.entries[idx+1:]...)
	}
	newGroup.entries = append(newGroup.entries, entry)
	entry.group = newGroup
	entry.Times.Relocate()
	db.notifyModified()
	return nil
}

// PermanentlyDeleteEntry detaches entry from its group and records a
// tombstone.
func (db *Database) PermanentlyDeleteEntry(entry *Entry) error {
	if err := db.RemoveEntry(entry); err != nil {
		return err
	}
	db.AddTombstone(entry.UUID, time.Now())
	return nil
}

// PermanentlyDeleteGroup removes group and every descendant, recording a
// tombstone for each removed entity (spec §4.4 "emptyRecycleBin").
func (db *Database) PermanentlyDeleteGroup(group *Group) error {
	at := time.Now()
	var walk func(g *Group)
	walk = func(g *Group) {
		for _, e := range append([]*Entry(nil), g.entries...) {
			db.AddTombstone(e.UUID, at)
		}
		for _, c := range append([]*Group(nil), g.children...) {
			walk(c)
		}
		db.AddTombstone(g.UUID, at)
	}
	walk(group)
	return db.RemoveGroup(group)
}

func indexOfGroup(s []*Group, g *Group) int {
	for i, x := range s {
		if x == g {
			return i
		}
	}
	return -1
}

func indexOfEntry(s []*Entry, e *Entry) int {
	for i, x := range s {
		if x == e {
			return i
		}
	}
	return -1
}

// findGroup walks the tree looking up a group by UUID.
func (db *Database) findGroup(id uuid.UUID) *Group {
	var found *Group
	var walk func(g *Group)
	walk = func(g *Group) {
		if found != nil {
			return
		}
		if g.UUID == id {
			found = g
			return
		}
		for _, c := range g.children {
			walk(c)
		}
	}
	walk(db.root)
	return found
}

// findEntry walks the tree looking up an entry by UUID.
func (db *Database) findEntry(id uuid.UUID) *Entry {
	var found *Entry
	var walk func(g *Group)
	walk = func(g *Group) {
		if found != nil {
			return
		}
		for _, e := range g.entries {
			if e.UUID == id {
				found = e
				return
			}
		}
		for _, c := range g.children {
			walk(c)
		}
	}
	walk(db.root)
	return found
}

// FindGroup is the exported form of findGroup.
func (db *Database) FindGroup(id uuid.UUID) *Group { return db.findGroup(id) }

// FindEntry is the exported form of findEntry.
func (db *Database) FindEntry(id uuid.UUID) *Entry { return db.findEntry(id) }

// WalkGroups invokes fn for every group in the tree, root first,
// depth-first, parent before children.
func (db *Database) WalkGroups(fn func(*Group)) {
	var walk func(g *Group)
	walk = func(g *Group) {
		fn(g)
		for _, c := range g.children {
			walk(c)
		}
	}
	walk(db.root)
}
