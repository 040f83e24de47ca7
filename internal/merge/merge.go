// SPDX-License-Identifier: Apache-2.0

// Package merge implements the three-way reconciliation algorithm that
// folds a read-only source database into a writable target database
// (spec §4.5): group and entry reconciliation by UUID, per-group merge
// modes, tombstone application, and custom-data/metadata union.
package merge

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/keepctl/keepctl/internal/kperr"
	"github.com/keepctl/keepctl/internal/model"
)

// Result summarizes what a Merge call changed, for callers that want to
// report a summary (spec §4.5's CLI surface: "merge(target, source,
// mode) → summary").
type Result struct {
	GroupsAdded       int
	GroupsUpdated     int
	EntriesAdded      int
	EntriesUpdated    int
	EntriesDuplicated int
	TombstonesApplied int
}

// Merge reconciles target with source, mutating target in place. source
// is never modified. defaultMode is used wherever no group in the chain
// (down to the database level) picks a mode explicitly (spec §4.5:
// "Synchronize (default)").
func Merge(target, source *model.Database, defaultMode model.MergeMode) (*Result, error) {
	res := &Result{}

	target.SetEmitModified(false)
	defer target.SetEmitModified(true)

	if err := mergeGroups(target, source, res); err != nil {
		return nil, err
	}
	if err := mergeEntries(target, source, defaultMode, res); err != nil {
		return nil, err
	}
	applyTombstones(target, source, res)
	target.MergeTombstones(source.DeletedObjects())
	mergeDatabaseMetadata(target, source)

	return res, nil
}

// mergeGroups walks source's tree parent-first (the same order
// WalkGroups uses) so that by the time a child group is visited, its
// parent's corresponding target group already exists (spec §4.5 step 1).
func mergeGroups(target, source *model.Database, res *Result) error {
	var walkErr error
	source.WalkGroups(func(sg *model.Group) {
		if walkErr != nil {
			return
		}
		if sg.IsRoot() {
			if sg.Times.LastModificationTime.After(target.Root().Times.LastModificationTime) {
				mergeGroupScalars(target.Root(), sg)
			}
			return
		}

		tg := target.FindGroup(sg.UUID)
		if tg == nil {
			if target.ContainsDeletedObject(sg.UUID) {
				return // tombstoned in target: do not resurrect
			}
			parent := correspondingTargetGroup(target, source, sg.Parent())
			if parent == nil {
				walkErr = kperr.InvariantError("source group's parent has no target counterpart")
				return
			}
			ng := model.NewGroup(target)
			ng.UUID = sg.UUID
			if err := target.AddGroup(parent, ng); err != nil {
				walkErr = err
				return
			}
			mergeGroupScalars(ng, sg)
			res.GroupsAdded++
			return
		}

		if sg.Times.LastModificationTime.After(tg.Times.LastModificationTime) {
			mergeGroupScalars(tg, sg)
			res.GroupsUpdated++
		}
		if sg.Times.LocationChanged.After(tg.Times.LocationChanged) {
			newParent := correspondingTargetGroup(target, source, sg.Parent())
			if newParent != nil && newParent != tg.Parent() {
				if err := target.SetGroupParent(tg, newParent); err != nil {
					walkErr = err
					return
				}
			}
		}
		mergeCustomData(tg.CustomData, sg.CustomData, model.MergeModeSynchronize)
	})
	return walkErr
}

// correspondingTargetGroup maps a source group to its counterpart in
// target by UUID, special-casing the source root (which always maps to
// target's own root — two replicas of one database share a root UUID).
func correspondingTargetGroup(target, source *model.Database, sg *model.Group) *model.Group {
	if sg == nil || sg == source.Root() {
		return target.Root()
	}
	return target.FindGroup(sg.UUID)
}

// mergeGroupScalars overwrites tg's scalar fields (everything but its
// position and children) with sg's.
func mergeGroupScalars(tg, sg *model.Group) {
	tg.Name = sg.Name
	tg.Notes = sg.Notes
	tg.IconID = sg.IconID
	tg.CustomIconUUID = sg.CustomIconUUID
	tg.IsExpanded = sg.IsExpanded
	tg.DefaultAutoTypeSequence = sg.DefaultAutoTypeSequence
	tg.EnableAutoType = sg.EnableAutoType
	tg.EnableSearching = sg.EnableSearching
	tg.Inherit = sg.Inherit
	tg.MergeMode = sg.MergeMode
	tg.LastTopVisibleEntry = sg.LastTopVisibleEntry
	tg.Times = sg.Times
}

// mergeEntries walks every source entry and reconciles it into target
// according to the merge mode resolved for its owning group (spec §4.5
// step 2).
func mergeEntries(target, source *model.Database, defaultMode model.MergeMode, res *Result) error {
	var walkErr error
	source.WalkGroups(func(sg *model.Group) {
		if walkErr != nil {
			return
		}
		for _, se := range sg.Entries() {
			te := target.FindEntry(se.UUID)
			if te == nil {
				if target.ContainsDeletedObject(se.UUID) {
					continue // honor the tombstone: do not resurrect (spec §9 Open Question (b))
				}
				tgParent := correspondingTargetGroup(target, source, sg)
				if tgParent == nil {
					walkErr = kperr.InvariantError("source entry's group has no target counterpart")
					return
				}
				clone := cloneEntryDeep(se)
				if err := target.AddEntry(tgParent, clone); err != nil {
					walkErr = err
					return
				}
				res.EntriesAdded++
				continue
			}

			mode := sg.ResolvedMergeMode(defaultMode)
			if err := mergeEntry(target, te, se, sg, mode, res); err != nil {
				walkErr = err
				return
			}
		}
	})
	return walkErr
}

// cloneEntryDeep deep-copies se, including its own history (each history
// item copied the same shallow way Snapshot does), as a detached Entry
// ready to attach via Database.AddEntry — which assigns the owning
// database and group on attach.
func cloneEntryDeep(se *model.Entry) *model.Entry {
	cp := se.Snapshot()
	for _, h := range se.History {
		cp.History = append(cp.History, h.Snapshot())
	}
	return cp
}

// mergeEntry applies mode to reconcile se (source's version) into te
// (target's existing entry), per spec §4.5 point 2. sg is se's owning
// source group, needed to resolve the corresponding target group for
// Synchronize's location-changed re-parenting rule.
func mergeEntry(target *model.Database, te, se *model.Entry, sg *model.Group, mode model.MergeMode, res *Result) error {
	meta := target.Metadata()
	switch mode {
	case model.MergeModeKeepLocal:
		if se.Times.LastModificationTime.After(newestHistoryTime(te)) {
			te.PushSnapshot(meta, se.Snapshot())
			res.EntriesUpdated++
		}
		mergeCustomData(te.CustomData, se.CustomData, mode)
		return nil

	case model.MergeModeKeepRemote:
		te.PushHistory(meta)
		overwriteScalars(te, se)
		mergeCustomData(te.CustomData, se.CustomData, mode)
		res.EntriesUpdated++
		return nil

	case model.MergeModeKeepNewer:
		if se.Times.LastModificationTime.After(te.Times.LastModificationTime) {
			te.PushHistory(meta)
			overwriteScalars(te, se)
			res.EntriesUpdated++
		}
		mergeCustomData(te.CustomData, se.CustomData, mode)
		return nil

	case model.MergeModeDuplicate:
		if entriesContentEqual(te, se) {
			return nil
		}
		dup := cloneEntryDeep(se)
		dup.UUID = uuid.New()
		if err := target.AddEntry(te.Group(), dup); err != nil {
			return err
		}
		res.EntriesDuplicated++
		return nil

	default: // Synchronize
		return synchronizeEntry(target, te, se, sg, res)
	}
}

// synchronizeEntry merges te's and se's histories by last-modification,
// deduplicates identical snapshots, promotes the newest to the live top,
// and re-parents te if se's location-changed is newer (spec §4.5
// "Synchronize").
func synchronizeEntry(target *model.Database, te, se *model.Entry, sg *model.Group, res *Result) error {
	combined := append([]*model.Entry(nil), te.History...)
	combined = append(combined, te.Snapshot())
	combined = append(combined, se.History...)
	combined = append(combined, se.Snapshot())
	combined = dedupeSnapshots(combined)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Times.LastModificationTime.Before(combined[j].Times.LastModificationTime)
	})

	top := combined[len(combined)-1]
	rest := combined[:len(combined)-1]

	overwriteScalars(te, top)
	te.History = nil
	meta := target.Metadata()
	for _, snap := range rest {
		te.PushSnapshot(meta, snap)
	}

	if se.Times.LocationChanged.After(te.Times.LocationChanged) {
		newParent := correspondingTargetGroup(target, sg.Database(), sg)
		if newParent != nil && newParent != te.Group() {
			if err := target.SetEntryParent(te, newParent); err != nil {
				return err
			}
		}
	}

	mergeCustomData(te.CustomData, se.CustomData, model.MergeModeSynchronize)
	res.EntriesUpdated++
	return nil
}

// overwriteScalars replaces te's live content (attributes, attachments,
// auto-type, tags, icon, times) with src's, leaving te's identity
// (UUID, group, history, custom data) untouched.
func overwriteScalars(te, src *model.Entry) {
	te.Attributes = src.Attributes
	te.Attachments = src.Attachments
	te.AutoType = src.AutoType
	te.Tags = src.Tags
	te.IconID = src.IconID
	te.CustomIconUUID = src.CustomIconUUID
	te.Times = src.Times
}

// newestHistoryTime returns the latest LastModificationTime among e's
// history items, or the zero time if e has no history.
func newestHistoryTime(e *model.Entry) (latest time.Time) {
	for _, h := range e.History {
		if h.Times.LastModificationTime.After(latest) {
			latest = h.Times.LastModificationTime
		}
	}
	return latest
}

// dedupeSnapshots removes snapshots that are both content-equal and
// timestamped identically to an earlier snapshot in the slice, preserving
// order (spec §4.5: "deduplicating identical snapshots").
func dedupeSnapshots(snaps []*model.Entry) []*model.Entry {
	out := make([]*model.Entry, 0, len(snaps))
	for _, s := range snaps {
		dup := false
		for _, kept := range out {
			if kept.Times.LastModificationTime.Equal(s.Times.LastModificationTime) && entriesContentEqual(kept, s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

// entriesContentEqual compares two entries' user-visible content,
// ignoring identity (UUID, db/group) and timestamps other than what's
// folded into Attributes/Attachments/Tags/AutoType/Icon.
func entriesContentEqual(a, b *model.Entry) bool {
	if len(a.Attributes) != len(b.Attributes) {
		return false
	}
	for k, av := range a.Attributes {
		bv, ok := b.Attributes[k]
		if !ok || av != bv {
			return false
		}
	}
	if len(a.Attachments) != len(b.Attachments) {
		return false
	}
	for k, av := range a.Attachments {
		bv, ok := b.Attachments[k]
		if !ok || av.Hash() != bv.Hash() {
			return false
		}
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return a.IconID == b.IconID && a.CustomIconUUID == b.CustomIconUUID
}

// applyTombstones permanently deletes, in target, any live entity whose
// UUID has a source tombstone predating... rather, whose last-modification
// precedes the tombstone's deletionTime (spec §4.5 step 3). The tombstone
// recorded carries the source's original deletionTime, not the time of
// this merge.
func applyTombstones(target, source *model.Database, res *Result) {
	for _, d := range source.DeletedObjects() {
		if g := target.FindGroup(d.UUID); g != nil {
			if g.Times.LastModificationTime.Before(d.DeletionTime) {
				cascadeRemoveGroup(target, g, d.DeletionTime, res)
			}
			continue
		}
		if e := target.FindEntry(d.UUID); e != nil {
			if e.Times.LastModificationTime.Before(d.DeletionTime) {
				_ = target.RemoveEntry(e)
				target.AddTombstone(d.UUID, d.DeletionTime)
				res.TombstonesApplied++
			}
		}
	}
}

// cascadeRemoveGroup tombstones g and every descendant entry/group at the
// given deletion time, then detaches g from its parent, so a group
// tombstoned on one replica never leaves descendants live and untombstoned
// on the other (spec §4.5/§8: merge must preserve the tombstone invariant
// across both inputs). Only g itself is ever detached from the tree: a
// recursive RemoveGroup on each descendant would mutate a parent's child
// slice while an outer call is still ranging over it.
func cascadeRemoveGroup(target *model.Database, g *model.Group, at time.Time, res *Result) {
	var walk func(n *model.Group)
	walk = func(n *model.Group) {
		for _, e := range n.Entries() {
			target.AddTombstone(e.UUID, at)
			res.TombstonesApplied++
		}
		for _, c := range n.Groups() {
			walk(c)
		}
		target.AddTombstone(n.UUID, at)
		res.TombstonesApplied++
	}
	walk(g)
	_ = target.RemoveGroup(g)
}

// mergeDatabaseMetadata unions scalar metadata fields (newer
// last-modification wins) and the custom-data map (spec §4.5 step 4).
func mergeDatabaseMetadata(target, source *model.Database) {
	tm, sm := target.Metadata(), source.Metadata()
	if sm.LastModified.After(tm.LastModified) {
		tm.Generator = sm.Generator
		tm.Name = sm.Name
		tm.Description = sm.Description
		tm.RecycleBinEnabled = sm.RecycleBinEnabled
		tm.RecycleBinUUID = sm.RecycleBinUUID
		tm.RecycleBinChanged = sm.RecycleBinChanged
		tm.HistoryMaxItems = sm.HistoryMaxItems
		tm.HistoryMaxSize = sm.HistoryMaxSize
		tm.LastSelectedGroup = sm.LastSelectedGroup
		tm.LastTopVisibleGroup = sm.LastTopVisibleGroup
		tm.LastModified = sm.LastModified
	}
	mergeCustomData(tm.CustomData, sm.CustomData, model.MergeModeSynchronize)
}

// mergeCustomData unions src into dst: per-key conflicts are resolved by
// last-modification where both sides recorded one; otherwise source wins
// only under KeepRemote/Synchronize, matching target's existing value
// everywhere else (spec §4.5 step 4).
func mergeCustomData(dst, src model.CustomData, mode model.MergeMode) {
	for k, sv := range src {
		dv, ok := dst[k]
		if !ok {
			dst[k] = sv
			continue
		}
		if !sv.LastModified.IsZero() || !dv.LastModified.IsZero() {
			if sv.LastModified.After(dv.LastModified) {
				dst[k] = sv
			}
			continue
		}
		if mode == model.MergeModeKeepRemote || mode == model.MergeModeSynchronize {
			dst[k] = sv
		}
	}
}
