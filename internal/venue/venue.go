// Package venue indexes art installations and camps by UID and resolves
// event locations through the fixed art -> camp -> free-text fallback chain.
package venue

import (
	"playafind/internal/model"
)

// Index provides O(1) UID lookups over one year's venue collections. An
// Index is built once per data refresh and is read-only afterwards;
// concurrent processing passes may share it, and a refresh swaps in a whole
// new Index rather than mutating an existing one.
type Index struct {
	art   map[string]model.ArtInstallation
	camps map[string]model.Camp
}

// NewIndex builds lookup maps from the raw collections. Records without a
// UID are skipped; duplicate UIDs keep the last record seen.
func NewIndex(art []model.ArtInstallation, camps []model.Camp) *Index {
	ix := &Index{
		art:   make(map[string]model.ArtInstallation, len(art)),
		camps: make(map[string]model.Camp, len(camps)),
	}
	for _, a := range art {
		if a.UID == "" {
			continue
		}
		ix.art[a.UID] = a
	}
	for _, c := range camps {
		if c.UID == "" {
			continue
		}
		ix.camps[c.UID] = c
	}
	return ix
}

// Art looks up an installation by UID.
func (ix *Index) Art(uid string) (model.ArtInstallation, bool) {
	a, ok := ix.art[uid]
	return a, ok
}

// Camp looks up a camp by UID.
func (ix *Index) Camp(uid string) (model.Camp, bool) {
	c, ok := ix.camps[uid]
	return c, ok
}

// ArtCount reports the number of indexed installations.
func (ix *Index) ArtCount() int { return len(ix.art) }

// CampCount reports the number of indexed camps.
func (ix *Index) CampCount() int { return len(ix.camps) }
