// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// TimeInfo records the lifecycle timestamps shared by Group and Entry
// (spec §3 "TimeInfo"). LocationChanged advances whenever the owning
// entity's parent changes; it is load-bearing for merge (spec §4.5 step
// 1: "the side with the newer value wins the parent").
type TimeInfo struct {
	CreationTime         time.Time
	LastModificationTime time.Time
	LastAccessTime       time.Time
	ExpiryTime           time.Time
	Expires              bool
	UsageCount           uint32
	LocationChanged      time.Time
}

// NewTimeInfo returns a TimeInfo with every timestamp set to now.
func NewTimeInfo() TimeInfo {
	now := time.Now()
	return TimeInfo{
		CreationTime:         now,
		LastModificationTime: now,
		LastAccessTime:       now,
		LocationChanged:      now,
	}
}

// Touch updates LastModificationTime (and LastAccessTime, which a
// modification always implies a read of) to now.
func (t *TimeInfo) Touch() {
	now := time.Now()
	t.LastModificationTime = now
	t.LastAccessTime = now
}

// Access updates LastAccessTime to now without counting as a
// modification.
func (t *TimeInfo) Access() {
	t.LastAccessTime = time.Now()
	t.UsageCount++
}

// Relocate updates LocationChanged to now. Called by SetGroupParent and
// SetEntryParent whenever an entity moves to a different parent group.
func (t *TimeInfo) Relocate() {
	t.LocationChanged = time.Now()
}
