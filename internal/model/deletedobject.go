// SPDX-License-Identifier: Apache-2.0

package model

import (
	"time"

	"github.com/google/uuid"
)

// DeletedObject is a tombstone recording that an entity with UUID was
// permanently deleted at DeletionTime (spec §3 "DeletedObject").
type DeletedObject struct {
	UUID         uuid.UUID
	DeletionTime time.Time
}

// DeletedObjects returns the database's tombstone list. Callers must not
// mutate the returned slice; use AddTombstone.
func (db *Database) DeletedObjects() []DeletedObject {
	return db.deletedObjects
}

// ContainsDeletedObject reports whether id has a tombstone.
func (db *Database) ContainsDeletedObject(id uuid.UUID) bool {
	for _, d := range db.deletedObjects {
		if d.UUID == id {
			return true
		}
	}
	return false
}

// AddTombstone records a tombstone for id at deletionTime. Tombstones are
// never duplicated for the same UUID: if one already exists, the newer
// deletionTime wins (spec §3 "DeletedObject").
func (db *Database) AddTombstone(id uuid.UUID, deletionTime time.Time) {
	for i, d := range db.deletedObjects {
		if d.UUID == id {
			if deletionTime.After(d.DeletionTime) {
				db.deletedObjects[i].DeletionTime = deletionTime
			}
			return
		}
	}
	db.deletedObjects = append(db.deletedObjects, DeletedObject{UUID: id, DeletionTime: deletionTime})
}

// MergeTombstones unions other into db's tombstone list, keeping the max
// DeletionTime per UUID (spec §4.5 step 3).
func (db *Database) MergeTombstones(other []DeletedObject) {
	for _, d := range other {
		db.AddTombstone(d.UUID, d.DeletionTime)
	}
}
