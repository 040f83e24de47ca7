// SPDX-License-Identifier: Apache-2.0

package model

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

// Canonical attribute keys (spec §3 "Entry").
const (
	AttrTitle    = "Title"
	AttrUserName = "UserName"
	AttrPassword = "Password"
	AttrURL      = "URL"
	AttrNotes    = "Notes"
)

// AttributeValue is a single entry attribute. Protected attributes must be
// stream-enciphered on disk (spec §3, §4.3).
type AttributeValue struct {
	Value     string
	Protected bool
}

// Attachment is a named binary blob owned by an Entry (spec §3 "Entry").
type Attachment struct {
	Name string
	Data []byte
}

// Hash returns the SHA-256 of the attachment body; the merge engine
// compares attachments by it.
func (a Attachment) Hash() [32]byte { return sha256.Sum256(a.Data) }

// AutoTypeAssociation binds an auto-type keystroke sequence to a window
// title pattern.
type AutoTypeAssociation struct {
	WindowTitle string
	Sequence    string
}

// AutoTypeSettings holds an entry's auto-type configuration.
type AutoTypeSettings struct {
	Enabled                 bool
	DefaultSequenceOverride string
	Associations            []AutoTypeAssociation
}

// TOTPSettings models the subset of an entry's TOTP configuration the
// engine understands, conventionally stored in the "otp" attribute on
// disk (spec §3 "Entry": "optional TOTP settings encoded in attributes").
type TOTPSettings struct {
	Secret string
	Period int
	Digits int
}

// Entry is a single credential record (spec §3 "Entry"). A history
// snapshot is itself an Entry with History always empty (spec §3
// "History": "history entries carry no history themselves").
type Entry struct {
	db    *Database // weak
	group *Group    // weak; nil for history snapshots

	UUID uuid.UUID

	Attributes  map[string]AttributeValue
	Attachments map[string]Attachment

	AutoType AutoTypeSettings
	Tags     []string

	IconID         int
	CustomIconUUID uuid.UUID

	Times TimeInfo

	CustomData CustomData

	History []*Entry
}

func newEntry(db *Database) *Entry {
	return &Entry{
		db:          db,
		UUID:        uuid.New(),
		Attributes:  make(map[string]AttributeValue),
		Attachments: make(map[string]Attachment),
		Times:       NewTimeInfo(),
		CustomData:  make(CustomData),
	}
}

// NewEntry creates a detached Entry not yet attached to any group. Use
// Group.AddEntry (via Database) to attach it to the tree.
func NewEntry(db *Database) *Entry { return newEntry(db) }

// Database returns the owning database.
func (e *Entry) Database() *Database { return e.db }

// Group returns the owning group, or nil for a history snapshot.
func (e *Entry) Group() *Group { return e.group }

// Get returns an attribute's value and whether it was protected.
func (e *Entry) Get(key string) (string, bool, bool) {
	v, ok := e.Attributes[key]
	if !ok {
		return "", false, false
	}
	return v.Value, v.Protected, true
}

// Set assigns an attribute value.
func (e *Entry) Set(key, value string, protected bool) {
	e.Attributes[key] = AttributeValue{Value: value, Protected: protected}
}

// Title, UserName, Password, URL, and Notes are convenience accessors for
// the canonical attributes.
func (e *Entry) Title() string    { v, _, _ := e.Get(AttrTitle); return v }
func (e *Entry) UserName() string { v, _, _ := e.Get(AttrUserName); return v }
func (e *Entry) Password() string { v, _, _ := e.Get(AttrPassword); return v }
func (e *Entry) URL() string      { v, _, _ := e.Get(AttrURL); return v }
func (e *Entry) Notes() string    { v, _, _ := e.Get(AttrNotes); return v }

// Snapshot returns a deep copy of e suitable for pushing onto a history
// list: it carries no history and no group back-reference, and keeps e's
// database back-reference (history entries are owned by the live Entry,
// not by a group).
func (e *Entry) Snapshot() *Entry {
	cp := &Entry{
		db:          e.db,
		UUID:        e.UUID,
		Attributes:  make(map[string]AttributeValue, len(e.Attributes)),
		Attachments: make(map[string]Attachment, len(e.Attachments)),
		AutoType:    e.AutoType,
		Tags:        append([]string(nil), e.Tags...),
		IconID:      e.IconID,
		CustomIconUUID: e.CustomIconUUID,
		Times:       e.Times,
		CustomData:  e.CustomData.Clone(),
	}
	for k, v := range e.Attributes {
		cp.Attributes[k] = v
	}
	for k, v := range e.Attachments {
		cp.Attachments[k] = v
	}
	return cp
}

// approximateSize estimates the on-disk footprint of a history snapshot,
// used to enforce Metadata.HistoryMaxSize (spec §3 "History").
func (e *Entry) approximateSize() int64 {
	var n int64
	for k, v := range e.Attributes {
		n += int64(len(k) + len(v.Value))
	}
	for name, a := range e.Attachments {
		n += int64(len(name) + len(a.Data))
	}
	for _, t := range e.Tags {
		n += int64(len(t))
	}
	return n
}

// PushHistory pushes a snapshot of e's current state onto its history,
// then evicts the oldest snapshots until both Metadata.HistoryMaxItems and
// Metadata.HistoryMaxSize are satisfied (spec §3 "History", §8 "History
// bound").
func (e *Entry) PushHistory(meta *Metadata) {
	e.History = append(e.History, e.Snapshot())
	e.enforceHistoryBounds(meta)
}

// PushSnapshot appends an already-built snapshot (e.g. one originating
// from another Entry, as the merge engine does when folding a foreign
// history item in) onto e's history and enforces the same bounds as
// PushHistory.
func (e *Entry) PushSnapshot(meta *Metadata, snap *Entry) {
	e.History = append(e.History, snap)
	e.enforceHistoryBounds(meta)
}

func (e *Entry) enforceHistoryBounds(meta *Metadata) {
	maxItems := DefaultHistoryMaxItems
	maxSize := int64(DefaultHistoryMaxSize)
	if meta != nil {
		if meta.HistoryMaxItems > 0 {
			maxItems = meta.HistoryMaxItems
		}
		if meta.HistoryMaxSize > 0 {
			maxSize = meta.HistoryMaxSize
		}
	}
	for len(e.History) > maxItems {
		e.History = e.History[1:]
	}
	total := int64(0)
	for _, h := range e.History {
		total += h.approximateSize()
	}
	for total > maxSize && len(e.History) > 0 {
		total -= e.History[0].approximateSize()
		e.History = e.History[1:]
	}
}
