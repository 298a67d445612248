package storage

import "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/stats"

const legacyMageClass = "mage"

// DefaultClass is the only selectable class.
const DefaultClass = "firemage"

// NewProgressRecord returns the document written for a first-time account.
func NewProgressRecord() ProgressRecord {
	return ProgressRecord{Classes: make(map[string]stats.ClassProgress)}
}

// MigrateProgress upgrades legacy documents in place: the old "mage" class id
// becomes "firemage", nil maps are allocated, and negative gold resets to 0.
// It reports whether anything changed.
func MigrateProgress(record *ProgressRecord) bool {
	if record == nil {
		return false
	}
	changed := false
	if record.Classes == nil {
		record.Classes = make(map[string]stats.ClassProgress)
		changed = true
	}
	if record.SelectedClass == legacyMageClass {
		record.SelectedClass = DefaultClass
		changed = true
	}
	if bag, ok := record.Classes[legacyMageClass]; ok {
		if _, exists := record.Classes[DefaultClass]; !exists {
			record.Classes[DefaultClass] = bag
		}
		delete(record.Classes, legacyMageClass)
		changed = true
	}
	if record.Gold < 0 {
		record.Gold = 0
		changed = true
	}
	return changed
}
