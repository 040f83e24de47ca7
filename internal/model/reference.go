// SPDX-License-Identifier: Apache-2.0

package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// referencePattern matches a KeePass field reference: {REF:<Wanted
// field>@<Search field>:<Search text>} (spec §3 "field references",
// GLOSSARY "Reference"). Field and search letters are single characters
// from the set T/U/P/A/N/I.
var referencePattern = regexp.MustCompile(`(?i)\{REF:([TUPAN])@([TUPANI]):([^}]*)\}`)

const maxReferenceDepth = 16

// ResolveReferences expands every {REF:...} placeholder found in value,
// recursively, stopping at maxReferenceDepth or the first UUID already
// visited to break reference cycles (spec §8 "reference cycle does not
// hang or crash; it resolves to some bounded, non-crashing result").
func (db *Database) ResolveReferences(value string) string {
	return db.resolveReferences(value, make(map[uuid.UUID]bool), 0)
}

func (db *Database) resolveReferences(value string, visited map[uuid.UUID]bool, depth int) string {
	if depth >= maxReferenceDepth {
		return value
	}
	return referencePattern.ReplaceAllStringFunc(value, func(m string) string {
		parts := referencePattern.FindStringSubmatch(m)
		if parts == nil {
			return m
		}
		wanted := strings.ToUpper(parts[1])
		searchField := strings.ToUpper(parts[2])
		searchText := parts[3]

		target := db.findEntryByReference(searchField, searchText)
		if target == nil {
			return m
		}
		if visited[target.UUID] {
			return m
		}
		visited[target.UUID] = true

		resolved := referenceFieldValue(target, wanted)
		return db.resolveReferences(resolved, visited, depth+1)
	})
}

// findEntryByReference looks up the first entry, in tree order, whose
// searchField matches searchText case-insensitively (spec: "search is
// case-insensitive"). I (UUID) compares hex UUID text exactly.
func (db *Database) findEntryByReference(searchField, searchText string) *Entry {
	if searchField == "I" {
		id, err := uuid.Parse(searchText)
		if err != nil {
			return nil
		}
		return db.findEntry(id)
	}

	needle := strings.ToLower(searchText)
	var found *Entry
	db.WalkGroups(func(g *Group) {
		if found != nil {
			return
		}
		for _, e := range g.entries {
			if strings.ToLower(referenceFieldValue(e, searchField)) == needle {
				found = e
				return
			}
		}
	})
	return found
}

func referenceFieldValue(e *Entry, field string) string {
	switch field {
	case "T":
		return e.Title()
	case "U":
		return e.UserName()
	case "P":
		return e.Password()
	case "A":
		return e.URL()
	case "N":
		return e.Notes()
	case "I":
		return e.UUID.String()
	default:
		return ""
	}
}
