// SPDX-License-Identifier: Apache-2.0

package model

import (
	"github.com/google/uuid"
)

// Tristate models a property that is explicitly enabled, explicitly
// disabled, or left to inherit from the parent chain (spec §3 "Group":
// "three tri-state toggles ... resolved up the parent chain").
type Tristate int

const (
	TristateInherit Tristate = iota
	TristateEnabled
	TristateDisabled
)

// Group owns an ordered list of child Groups and an ordered list of child
// Entries (spec §3 "Group").
type Group struct {
	db     *Database // weak: does not extend the database's lifetime
	parent *Group    // weak: nil only for the root group

	UUID uuid.UUID
	Name string
	Notes string

	IconID         int
	CustomIconUUID uuid.UUID

	Times      TimeInfo
	IsExpanded bool

	DefaultAutoTypeSequence string

	EnableAutoType  Tristate
	EnableSearching Tristate
	// Inherit controls whether properties not explicitly set on this
	// group (icon, auto-type sequence) fall through to the parent; like
	// the other two toggles it resolves up the parent chain.
	Inherit Tristate

	MergeMode MergeMode

	CustomData CustomData

	// LastTopVisibleEntry is a weak reference to a child entry, tracking
	// UI scroll position; it never extends the entry's lifetime.
	LastTopVisibleEntry uuid.UUID

	children []*Group
	entries  []*Entry
}

func newGroup(db *Database, parent *Group) *Group {
	return &Group{
		db:         db,
		parent:     parent,
		UUID:       uuid.New(),
		Times:      NewTimeInfo(),
		CustomData: make(CustomData),
	}
}

// NewGroup creates a detached Group not yet attached to any parent. Use
// Database.AddGroup to attach it to the tree.
func NewGroup(db *Database) *Group {
	return newGroup(db, nil)
}

// Database returns the owning database.
func (g *Group) Database() *Database { return g.db }

// Parent returns the parent group, or nil for the root group.
func (g *Group) Parent() *Group { return g.parent }

// Groups returns the ordered list of child groups. Callers must not
// mutate the returned slice directly.
func (g *Group) Groups() []*Group { return g.children }

// Entries returns the ordered list of child entries. Callers must not
// mutate the returned slice directly.
func (g *Group) Entries() []*Entry { return g.entries }

// IsRoot reports whether g is its database's root group.
func (g *Group) IsRoot() bool { return g.parent == nil }

// ResolvedAutoType walks the parent chain to resolve a TristateInherit
// EnableAutoType setting. Root defaults to enabled.
func (g *Group) ResolvedAutoType() bool {
	return resolveTristate(g, func(x *Group) Tristate { return x.EnableAutoType })
}

// ResolvedSearching walks the parent chain to resolve a TristateInherit
// EnableSearching setting. Root defaults to enabled.
func (g *Group) ResolvedSearching() bool {
	return resolveTristate(g, func(x *Group) Tristate { return x.EnableSearching })
}

func resolveTristate(g *Group, get func(*Group) Tristate) bool {
	for cur := g; cur != nil; cur = cur.parent {
		switch get(cur) {
		case TristateEnabled:
			return true
		case TristateDisabled:
			return false
		}
	}
	return true
}

// isAncestorOf reports whether g is an ancestor of candidate (or equal to
// it), walking up candidate's parent chain.
func (g *Group) isAncestorOf(candidate *Group) bool {
	for cur := candidate; cur != nil; cur = cur.parent {
		if cur == g {
			return true
		}
	}
	return false
}
