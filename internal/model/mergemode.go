// SPDX-License-Identifier: Apache-2.0

package model

// MergeMode selects how conflicts between two replicas of the same entry
// are resolved during a three-way merge (spec §4.5, GLOSSARY). A Group's
// MergeMode overrides the database-wide default for entries under that
// group; MergeModeUnset means "inherit from the parent group, or the
// database default at the root."
type MergeMode int

const (
	MergeModeUnset MergeMode = iota
	MergeModeKeepLocal
	MergeModeKeepRemote
	MergeModeKeepNewer
	MergeModeSynchronize
	MergeModeDuplicate
)

// DefaultMergeMode is used when neither a group nor the database specifies
// one (spec §4.5: "Synchronize (default)").
const DefaultMergeMode = MergeModeSynchronize

// ResolvedMergeMode walks g's parent chain, then falls back to
// dbDefault, to resolve a MergeModeUnset group setting.
func (g *Group) ResolvedMergeMode(dbDefault MergeMode) MergeMode {
	for cur := g; cur != nil; cur = cur.parent {
		if cur.MergeMode != MergeModeUnset {
			return cur.MergeMode
		}
	}
	if dbDefault != MergeModeUnset {
		return dbDefault
	}
	return DefaultMergeMode
}

func (m MergeMode) String() string {
	switch m {
	case MergeModeKeepLocal:
		return "KeepLocal"
	case MergeModeKeepRemote:
		return "KeepRemote"
	case MergeModeKeepNewer:
		return "KeepNewer"
	case MergeModeSynchronize:
		return "Synchronize"
	case MergeModeDuplicate:
		return "Duplicate"
	default:
		return "Unset"
	}
}
