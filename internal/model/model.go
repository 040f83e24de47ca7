// SPDX-License-Identifier: Apache-2.0

// Package model implements the in-memory domain model described in spec
// §3: a [Database] owning exactly one root [Group], a tree of [Group] and
// [Entry] values, bounded per-entry [History], and a tombstone list of
// [DeletedObject] records.
//
// The model is single-owner (spec §5): it is created and mutated by one
// goroutine at a time and performs no internal locking beyond the mutex
// that serializes the debounced "modified" signal and the save lock behind
// [Database.LockSave].
package model

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keepctl/keepctl/internal/cipher"
	"github.com/keepctl/keepctl/internal/kdf"
	"github.com/keepctl/keepctl/internal/randsrc"
)

// CompressionAlgorithm identifies the payload compression used by the
// codec (spec §4.3).
type CompressionAlgorithm uint32

const (
	CompressionNone CompressionAlgorithm = 0
	CompressionGzip CompressionAlgorithm = 1
)

// DatabaseData holds the cryptographic state of a Database: the selected
// cipher, compression and KDF, the cached transformed master key, the
// per-file master seed, and the public custom data. It does not hold the
// composite key or a challenge-response key.
type DatabaseData struct {
	CipherID    cipher.ID
	Compression CompressionAlgorithm

	KDF kdf.KDF

	// MasterSeed is per-file random data that salts key derivation and the
	// HMAC base key (spec GLOSSARY).
	MasterSeed []byte

	// transformedKey caches the KDF output after unlock so repeat saves
	// don't re-run the (expensive) transform unless the composite or KDF
	// parameters change.
	transformedKey *randsrc.SecretBuffer

	// PublicCustomData is a collaborator-visible key/value map persisted
	// in the outer header, outside the encrypted payload.
	PublicCustomData map[string][]byte
}

// TransformedKey returns the cached transformed master key, or nil if one
// hasn't been computed yet.
func (d *DatabaseData) TransformedKey() []byte { return d.transformedKey.Bytes() }

// SetTransformedKey caches key as the transformed master key, wiping any
// previously cached value first.
func (d *DatabaseData) SetTransformedKey(key []byte) {
	d.transformedKey.Wipe()
	d.transformedKey = randsrc.NewSecretBuffer(key)
}

// Wipe zeros all secret material held by d.
func (d *DatabaseData) Wipe() {
	d.transformedKey.Wipe()
}

// Metadata carries database-wide settings that are not part of the group
// tree itself (spec §3, §4.4).
type Metadata struct {
	Generator   string
	Name        string
	Description string

	RecycleBinEnabled bool
	RecycleBinUUID    uuid.UUID
	RecycleBinChanged time.Time

	HistoryMaxItems int
	HistoryMaxSize  int64 // bytes

	LastSelectedGroup     uuid.UUID
	LastTopVisibleGroup   uuid.UUID

	CustomData CustomData

	LastModified time.Time
}

// DefaultHistoryMaxItems and DefaultHistoryMaxSize are the bounds applied
// to per-entry history when Metadata doesn't specify tighter ones (spec
// §3 "History").
const (
	DefaultHistoryMaxItems = 10
	DefaultHistoryMaxSize  = 6 * 1024 * 1024
)

// NewMetadata returns Metadata with the default history bounds and an
// empty custom-data map.
func NewMetadata() *Metadata {
	return &Metadata{
		HistoryMaxItems: DefaultHistoryMaxItems,
		HistoryMaxSize:  DefaultHistoryMaxSize,
		CustomData:      make(CustomData),
		LastModified:    time.Now(),
	}
}

// Database owns exactly one root Group, Metadata, a tombstone list, and
// the cryptographic DatabaseData record (spec §3).
type Database struct {
	// identity distinguishes Database instances within a process; it is
	// not persisted on disk.
	identity uuid.UUID

	root *Group
	meta *Metadata
	data DatabaseData

	deletedObjects []DeletedObject

	observers    []Observer
	emitModified bool

	modMu       sync.Mutex
	modTimer    *time.Timer
	modPending  bool
	modDebounce time.Duration

	saveMu sync.Mutex
}

// ModifiedDebounce is the default coalescing window for the debounced
// "modified" signal (spec §4.4).
const ModifiedDebounce = 150 * time.Millisecond

// NewDatabase returns an empty Database with a fresh root Group and
// default Metadata. The caller is responsible for populating DatabaseData
// (cipher, KDF, transformed key) before saving.
func NewDatabase() *Database {
	db := &Database{
		identity:     uuid.New(),
		meta:         NewMetadata(),
		emitModified: true,
		modDebounce:  ModifiedDebounce,
	}
	db.root = newGroup(db, nil)
	db.root.Name = "Database"
	return db
}

// Identity returns the process-unique value that distinguishes this
// Database instance from any other open in the same process.
func (db *Database) Identity() uuid.UUID { return db.identity }

// Root returns the database's single root group.
func (db *Database) Root() *Group { return db.root }

// Metadata returns the database's metadata record.
func (db *Database) Metadata() *Metadata { return db.meta }

// Data returns the database's cryptographic state.
func (db *Database) Data() *DatabaseData { return &db.data }

// SetEmitModified toggles whether mutations raise notifications. Bulk
// loaders set this false during initial population (spec §4.4).
func (db *Database) SetEmitModified(on bool) { db.emitModified = on }

// LockSave and UnlockSave serialize concurrent save attempts on the same
// Database: the second of two concurrent saves waits for the first to
// finish rather than racing it onto the same file (spec §5 "Ordering
// guarantees").
func (db *Database) LockSave()   { db.saveMu.Lock() }
func (db *Database) UnlockSave() { db.saveMu.Unlock() }

// Close wipes cached secret material. It does not release the tree; the
// Database remains usable for inspection after Close, but any subsequent
// save will require re-deriving the transformed key.
func (db *Database) Close() {
	db.data.Wipe()
}
