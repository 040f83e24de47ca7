// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// EventKind identifies the notification an Observer receives.
type EventKind int

const (
	EventAboutToAddGroup EventKind = iota
	EventGroupAdded
	EventAboutToRemoveGroup
	EventGroupRemoved
	EventAboutToAddEntry
	EventEntryAdded
	EventAboutToRemoveEntry
	EventEntryRemoved
	// EventModifiedImmediate fires synchronously on every mutation, for
	// callers that need to observe state before the debounce window
	// elapses (spec §4.4).
	EventModifiedImmediate
	// EventModified is the debounced signal, raised at most once per
	// [ModifiedDebounce].
	EventModified
)

// Event is delivered to every registered Observer on every observable
// mutation. Group and Entry are populated according to Kind and may be
// nil otherwise.
type Event struct {
	Kind  EventKind
	Group *Group
	Entry *Entry
}

// Observer is a callback registered with Database.Subscribe. Observers run
// synchronously on the mutating goroutine; an observer must not mutate
// the database re-entrantly while handling an AboutToAdd/AboutToRemove
// event, since the tree is mid-transition (spec §5).
type Observer func(Event)

// Subscribe appends o to the database's observer list. There is no way to
// unsubscribe; the list is append-only for the lifetime of the Database.
func (db *Database) Subscribe(o Observer) {
	db.observers = append(db.observers, o)
}

func (db *Database) emit(ev Event) {
	for _, o := range db.observers {
		o(ev)
	}
}

// notifyModified raises the immediate signal synchronously, then arms or
// extends the debounce timer for the coalesced signal.
func (db *Database) notifyModified() {
	if !db.emitModified {
		return
	}
	db.emit(Event{Kind: EventModifiedImmediate})
	db.scheduleDebouncedModified()
}

func (db *Database) scheduleDebouncedModified() {
	db.modMu.Lock()
	defer db.modMu.Unlock()

	if db.modDebounce == 0 {
		db.modDebounce = ModifiedDebounce
	}
	if db.modTimer != nil {
		// A flush is already scheduled within the window; mark that
		// another mutation happened so the flush reschedules once more
		// rather than silently dropping it.
		db.modPending = true
		return
	}
	db.modTimer = time.AfterFunc(db.modDebounce, db.flushModified)
}

func (db *Database) flushModified() {
	db.modMu.Lock()
	db.modTimer = nil
	pending := db.modPending
	db.modPending = false
	db.modMu.Unlock()

	db.emit(Event{Kind: EventModified})

	if pending {
		db.scheduleDebouncedModified()
	}
}
