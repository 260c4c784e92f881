package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	appLog "playafind/internal/log"
	"playafind/internal/model"
	"playafind/internal/venue"
)

// Loader fetches the yearly collections from the dataset API. Fetch and
// parse failures are returned to the caller unchanged; there is no partial
// result.
type Loader struct {
	baseURL string
	fetcher *fetcher
}

// NewLoader creates a Loader for the given API base URL, caching responses
// under cacheDir.
func NewLoader(baseURL, cacheDir string) *Loader {
	return &Loader{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newFetcher(cacheDir),
	}
}

// BytesFetched reports the total body bytes downloaded (cache hits
// excluded) since the Loader was created.
func (l *Loader) BytesFetched() int64 {
	return l.fetcher.bytes.Load()
}

func (l *Loader) collectionURL(year int, name string) string {
	return fmt.Sprintf("%s/api/v1/%d/%s", l.baseURL, year, name)
}

// LoadEvents fetches and decodes the event collection for one year.
func (l *Loader) LoadEvents(ctx context.Context, year int) ([]model.RawEvent, error) {
	body, fromCache, err := l.fetcher.fetch(ctx, l.collectionURL(year, "events"))
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	var events []model.RawEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	appLog.Info("events loaded", "year", year, "count", len(events), "from_cache", fromCache)
	return events, nil
}

// LoadArt fetches and decodes the art collection for one year.
func (l *Loader) LoadArt(ctx context.Context, year int) ([]model.ArtInstallation, error) {
	body, fromCache, err := l.fetcher.fetch(ctx, l.collectionURL(year, "art"))
	if err != nil {
		return nil, fmt.Errorf("load art: %w", err)
	}
	var art []model.ArtInstallation
	if err := json.Unmarshal(body, &art); err != nil {
		return nil, fmt.Errorf("parse art: %w", err)
	}
	appLog.Info("art loaded", "year", year, "count", len(art), "from_cache", fromCache)
	return art, nil
}

// LoadCamps fetches and decodes the camp collection for one year.
func (l *Loader) LoadCamps(ctx context.Context, year int) ([]model.Camp, error) {
	body, fromCache, err := l.fetcher.fetch(ctx, l.collectionURL(year, "camps"))
	if err != nil {
		return nil, fmt.Errorf("load camps: %w", err)
	}
	var camps []model.Camp
	if err := json.Unmarshal(body, &camps); err != nil {
		return nil, fmt.Errorf("parse camps: %w", err)
	}
	appLog.Info("camps loaded", "year", year, "count", len(camps), "from_cache", fromCache)
	return camps, nil
}

// Snapshot is one immutable view of a year's dataset with its venue index
// prebuilt. Refresh always builds a complete new Snapshot; holders swap the
// pointer rather than mutating in place, so concurrent processing passes
// can keep reading an older snapshot safely.
type Snapshot struct {
	Year      int
	Events    []model.RawEvent
	Index     *venue.Index
	FetchedAt time.Time
}

// Refresh loads all three collections for year and assembles a Snapshot.
// Any collection failing fails the whole refresh.
func (l *Loader) Refresh(ctx context.Context, year int) (*Snapshot, error) {
	events, err := l.LoadEvents(ctx, year)
	if err != nil {
		return nil, err
	}
	art, err := l.LoadArt(ctx, year)
	if err != nil {
		return nil, err
	}
	camps, err := l.LoadCamps(ctx, year)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Year:      year,
		Events:    events,
		Index:     venue.NewIndex(art, camps),
		FetchedAt: time.Now().UTC(),
	}, nil
}
