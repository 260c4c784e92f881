// Package favorites persists user-favorited event occurrences as JSON
// snapshots on disk. Processing only ever consumes the ID set; the store
// owns everything else about the records.
package favorites

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"playafind/internal/model"
)

// sweepAfter is how long a favorite outlives its event's end before the
// cleanup sweep removes it.
const sweepAfter = 30 * 24 * time.Hour

// Store is a file-backed favorites collection. All methods are safe for
// concurrent use; every mutation is written through atomically.
type Store struct {
	path string

	mu    sync.Mutex
	items map[string]model.FavoriteEvent
}

// Open loads the store at path, treating a missing file as empty.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("favorites path is empty")
	}

	s := &Store{path: path, items: make(map[string]model.FavoriteEvent)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}

	var list []model.FavoriteEvent
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	for _, fav := range list {
		if fav.ID == "" {
			continue
		}
		s.items[fav.ID] = fav
	}
	return s, nil
}

// Snapshot builds the stored form of one processed occurrence.
func Snapshot(pe model.ProcessedEvent, addedAt time.Time) model.FavoriteEvent {
	return model.FavoriteEvent{
		ID:            pe.ID,
		EventUID:      pe.EventUID,
		Title:         pe.Title,
		Start:         pe.Start,
		End:           pe.End,
		Type:          pe.Type,
		TypeAbbr:      pe.TypeAbbr,
		LocationLabel: pe.LocationLabel,
		AddedAt:       addedAt,
	}
}

// Add stores fav, replacing any previous snapshot with the same ID.
func (s *Store) Add(fav model.FavoriteEvent) error {
	if fav.ID == "" {
		return errors.New("favorite has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[fav.ID] = fav
	return s.saveLocked()
}

// Remove deletes the favorite with the given ID, reporting whether it
// existed.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, s.saveLocked()
}

// IDs returns a point-in-time snapshot of the favorited composite IDs.
func (s *Store) IDs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]bool, len(s.items))
	for id := range s.items {
		ids[id] = true
	}
	return ids
}

// All returns the stored favorites ordered by AddedAt, then ID.
func (s *Store) All() []model.FavoriteEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Sweep removes favorites whose events ended more than 30 days before now
// and reports how many were removed.
func (s *Store) Sweep(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, fav := range s.items {
		if !fav.End.IsZero() && now.Sub(fav.End) > sweepAfter {
			delete(s.items, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.saveLocked()
}

func (s *Store) sortedLocked() []model.FavoriteEvent {
	list := make([]model.FavoriteEvent, 0, len(s.items))
	for _, fav := range s.items {
		list = append(list, fav)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].AddedAt.Equal(list[j].AddedAt) {
			return list[i].AddedAt.Before(list[j].AddedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// saveLocked writes the store through a temp file and rename so a crash
// mid-write never corrupts the favorites file.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.sortedLocked(), "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".favorites-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
