package favorites

import (
	"path/filepath"
	"testing"
	"time"

	"playafind/internal/model"
)

func testFavorite(id string, end, addedAt time.Time) model.FavoriteEvent {
	return model.FavoriteEvent{
		ID:       id,
		EventUID: id,
		Title:    "Event " + id,
		Start:    end.Add(-time.Hour),
		End:      end,
		AddedAt:  addedAt,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "favorites.json")
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.Add(testFavorite("b", now, now)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(testFavorite("a", now, now.Add(time.Minute))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Reopen from disk.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	all := s2.All()
	if len(all) != 2 {
		t.Fatalf("got %d favorites, want 2", len(all))
	}
	// Ordered by AddedAt.
	if all[0].ID != "b" || all[1].ID != "a" {
		t.Fatalf("order = %s, %s", all[0].ID, all[1].ID)
	}

	ids := s2.IDs()
	if !ids["a"] || !ids["b"] {
		t.Fatalf("ids = %v", ids)
	}

	removed, err := s2.Remove("a")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if removed, _ := s2.Remove("a"); removed {
		t.Fatal("double remove reported success")
	}
}

func TestStoreSweep(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "favorites.json")
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	stale := testFavorite("stale", now.Add(-31*24*time.Hour), now.Add(-40*24*time.Hour))
	edge := testFavorite("edge", now.Add(-30*24*time.Hour), now.Add(-35*24*time.Hour))
	fresh := testFavorite("fresh", now.Add(-time.Hour), now)

	for _, fav := range []model.FavoriteEvent{stale, edge, fresh} {
		if err := s.Add(fav); err != nil {
			t.Fatalf("Add(%s): %v", fav.ID, err)
		}
	}

	removed, err := s.Sweep(now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}

	ids := s.IDs()
	if ids["stale"] {
		t.Fatal("stale favorite survived the sweep")
	}
	// Exactly 30 days old is kept; the sweep is strictly greater-than.
	if !ids["edge"] || !ids["fresh"] {
		t.Fatalf("ids after sweep = %v", ids)
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	pe := model.ProcessedEvent{
		ID:            "ev-1-2026-09-02T18:00:00Z",
		EventUID:      "ev-1",
		Title:         "Sunset Yoga",
		TypeAbbr:      "heal",
		Start:         now,
		End:           now.Add(time.Hour),
		LocationLabel: "6:00 & D",
	}

	fav := Snapshot(pe, now)
	if fav.ID != pe.ID || fav.EventUID != "ev-1" || fav.AddedAt != now {
		t.Fatalf("snapshot = %+v", fav)
	}
	if fav.LocationLabel != "6:00 & D" || fav.TypeAbbr != "heal" {
		t.Fatalf("snapshot lost fields: %+v", fav)
	}
}
