// SPDX-License-Identifier: Apache-2.0

// Package cache mirrors a Database's group/entry tree into a local
// SQLite file via gorm, so that `ls` and `locate` can answer without
// re-walking the in-memory tree on every invocation. The cache is a
// derived, disposable index: it is always rebuilt from the Database
// before being queried, never the source of truth (spec §5, SPEC_FULL
// §4 "locate/ls backed by internal/cache").
package cache

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keepctl/keepctl/internal/kperr"
	"github.com/keepctl/keepctl/internal/model"
)

// groupRow mirrors one Group. Path is the slash-joined chain of group
// names from the root down to (and including) this group, precomputed
// at rebuild time so `ls`/`locate` never need to walk parent pointers.
type groupRow struct {
	UUID       string `gorm:"primaryKey"`
	ParentUUID string `gorm:"index"`
	Name       string
	Path       string `gorm:"index"`
}

// entryRow mirrors one Entry's searchable scalar fields. The attachment
// and history bodies are never mirrored — the cache exists to make
// traversal fast, not to duplicate the database's content.
type entryRow struct {
	UUID       string `gorm:"primaryKey"`
	GroupUUID  string `gorm:"index"`
	GroupPath  string `gorm:"index"`
	Title      string `gorm:"index"`
	UserName   string
	URL        string
}

func (groupRow) TableName() string { return "groups" }
func (entryRow) TableName() string { return "entries" }

// Cache is an open handle onto the sqlite mirror file.
type Cache struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the sqlite file at path and ensures
// its schema is current.
func Open(path string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, kperr.IoError(path, err)
	}
	if err := db.AutoMigrate(&groupRow{}, &entryRow{}); err != nil {
		return nil, kperr.IoError(path, err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying sqlite connection.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Rebuild replaces the cache's contents with a fresh mirror of db's
// current tree. It runs in a single transaction so a reader never
// observes a half-rebuilt cache.
func (c *Cache) Rebuild(db *model.Database) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM entries").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM groups").Error; err != nil {
			return err
		}

		var groups []groupRow
		var entries []entryRow
		var walk func(g *model.Group, path string)
		walk = func(g *model.Group, path string) {
			groupPath := path
			if !g.IsRoot() {
				if groupPath != "" {
					groupPath += "/"
				}
				groupPath += g.Name
			}
			var parentUUID string
			if p := g.Parent(); p != nil {
				parentUUID = p.UUID.String()
			}
			groups = append(groups, groupRow{
				UUID:       g.UUID.String(),
				ParentUUID: parentUUID,
				Name:       g.Name,
				Path:       groupPath,
			})
			for _, e := range g.Entries() {
				entries = append(entries, entryRow{
					UUID:      e.UUID.String(),
					GroupUUID: g.UUID.String(),
					GroupPath: groupPath,
					Title:     e.Title(),
					UserName:  e.UserName(),
					URL:       e.URL(),
				})
			}
			for _, c := range g.Groups() {
				walk(c, groupPath)
			}
		}
		walk(db.Root(), "")

		if len(groups) > 0 {
			if err := tx.Create(&groups).Error; err != nil {
				return err
			}
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// EntryRef is one row of a List/Locate result.
type EntryRef struct {
	UUID      uuid.UUID
	GroupPath string
	Title     string
	UserName  string
	URL       string
}

// List returns every entry directly inside the group at groupPath
// ("" for the root).
func (c *Cache) List(groupPath string) ([]EntryRef, error) {
	var rows []entryRow
	if err := c.db.Where("group_path = ?", groupPath).Order("title").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRefs(rows)
}

// Locate returns every entry whose title, username, or URL contains
// query, case-insensitively. This is the cache's only "search": a
// LIKE substring scan over the cached rows, not a search engine (spec §1
// Non-goals: "no indexing/search beyond linear traversal").
func (c *Cache) Locate(query string) ([]EntryRef, error) {
	like := "%" + strings.ToLower(query) + "%"
	var rows []entryRow
	err := c.db.Where(
		"lower(title) LIKE ? OR lower(user_name) LIKE ? OR lower(url) LIKE ?",
		like, like, like,
	).Order("title").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRefs(rows)
}

func toRefs(rows []entryRow) ([]EntryRef, error) {
	refs := make([]EntryRef, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.UUID)
		if err != nil {
			return nil, kperr.FormatError("cache row has invalid UUID: " + r.UUID)
		}
		refs = append(refs, EntryRef{
			UUID:      id,
			GroupPath: r.GroupPath,
			Title:     r.Title,
			UserName:  r.UserName,
			URL:       r.URL,
		})
	}
	return refs, nil
}
