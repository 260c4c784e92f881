package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"playafind/internal/config"
	"playafind/internal/dataset"
	"playafind/internal/favorites"
	"playafind/internal/model"
)

const testYear = 2026

func datasetBackend(t *testing.T) *httptest.Server {
	t.Helper()

	events := []model.RawEvent{
		{
			UID:   "ev-yoga",
			Title: "Sunset Yoga",
			Year:  testYear,
			EventType: &model.EventType{
				Label: "Class/Workshop", Abbr: "work",
			},
			Occurrences: []model.Occurrence{
				{StartTime: "2026-08-31T12:30:00Z", EndTime: "2026-08-31T14:00:00Z"},
			},
			HostedByCamp: "camp-om",
		},
		{
			UID:   "ev-drums",
			Title: "Drum Circle",
			Year:  testYear,
			EventType: &model.EventType{
				Label: "Music/Party", Abbr: "prty",
			},
			Occurrences: []model.Occurrence{
				{StartTime: "2026-08-31T13:00:00Z", EndTime: "2026-08-31T15:00:00Z"},
			},
			OtherLocation: "9:00 & C",
		},
	}
	camps := []model.Camp{
		{UID: "camp-om", Name: "Camp Om", LocationString: "6:00 & D"},
	}

	mux := http.NewServeMux()
	serve := func(path string, v any) {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(v)
		})
	}
	serve(fmt.Sprintf("/api/v1/%d/events", testYear), events)
	serve(fmt.Sprintf("/api/v1/%d/art", testYear), []model.ArtInstallation{})
	serve(fmt.Sprintf("/api/v1/%d/camps", testYear), camps)

	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)
	return backend
}

func newTestServer(t *testing.T, rateLimitRPS float64) *httptest.Server {
	t.Helper()

	backend := datasetBackend(t)
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Year = testYear
	cfg.Timezone = "UTC"
	cfg.DataBaseURL = backend.URL
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.FavoritesPath = filepath.Join(dir, "favorites.json")
	cfg.RateLimitRPS = rateLimitRPS

	favs, err := favorites.Open(cfg.FavoritesPath)
	if err != nil {
		t.Fatalf("open favorites: %v", err)
	}

	s := NewServer(cfg, dataset.NewLoader(cfg.DataBaseURL, cfg.CacheDir), favs)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGeocodeEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	var got struct {
		Address string  `json:"address"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	getJSON(t, ts.URL+"/api/geocode?address="+url.QueryEscape("6:00 & D"), http.StatusOK, &got)
	if got.Lat == 0 || got.Lon == 0 {
		t.Fatalf("coordinate not resolved: %+v", got)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	getJSON(t, ts.URL+"/api/geocode?address="+url.QueryEscape("not an address"), http.StatusBadRequest, &errResp)
	if !strings.Contains(errResp.Error, "not an address") {
		t.Fatalf("error should echo the input, got %q", errResp.Error)
	}

	getJSON(t, ts.URL+"/api/geocode", http.StatusBadRequest, nil)
}

func TestEventsEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	var got eventsResponse
	getJSON(t, ts.URL+"/api/events?now="+url.QueryEscape("2026-08-31T12:00:00Z"), http.StatusOK, &got)

	if got.Count != 2 || len(got.Events) != 2 {
		t.Fatalf("count = %d (%d events), want 2", got.Count, len(got.Events))
	}
	if got.Year != testYear {
		t.Fatalf("year = %d, want %d", got.Year, testYear)
	}

	byID := make(map[string]model.ProcessedEvent)
	for _, pe := range got.Events {
		byID[pe.EventUID] = pe
	}
	yoga, ok := byID["ev-yoga"]
	if !ok {
		t.Fatalf("yoga event missing from response: %+v", got.Events)
	}
	if yoga.LocationSource != "camp" || yoga.Coordinate == nil {
		t.Fatalf("yoga location not resolved via camp: %+v", yoga)
	}
	if yoga.Status != model.StatusUpcoming {
		t.Fatalf("yoga status = %v, want UPCOMING", yoga.Status)
	}
}

func TestEventsEndpointTypeFilter(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	var got eventsResponse
	getJSON(t, ts.URL+"/api/events?types=prty&now="+url.QueryEscape("2026-08-31T12:00:00Z"), http.StatusOK, &got)
	if got.Count != 1 || got.Events[0].EventUID != "ev-drums" {
		t.Fatalf("type filter: got %+v", got.Events)
	}
}

func TestEventsEndpointBadParams(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	for _, q := range []string{
		"lat=abc&lon=1",
		"radius=-5",
		"window=zero",
		"now=yesterday",
	} {
		getJSON(t, ts.URL+"/api/events?"+q, http.StatusBadRequest, nil)
	}
}

func TestFavoritesRoundtrip(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	id := "ev-yoga-2026-08-31T12:30:00Z"
	body, _ := json.Marshal(map[string]string{"id": id})
	resp, err := http.Post(ts.URL+"/api/favorites", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST favorite: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST favorite: status = %d, want 201", resp.StatusCode)
	}

	var favs []model.FavoriteEvent
	getJSON(t, ts.URL+"/api/favorites", http.StatusOK, &favs)
	if len(favs) != 1 || favs[0].ID != id || favs[0].Title != "Sunset Yoga" {
		t.Fatalf("favorites list: %+v", favs)
	}

	// Favorites filter on the events endpoint sees the stored ID.
	var got eventsResponse
	getJSON(t, ts.URL+"/api/events?favorites=1&now="+url.QueryEscape("2026-08-31T12:00:00Z"), http.StatusOK, &got)
	if got.Count != 1 || got.Events[0].ID != id {
		t.Fatalf("favorites filter: got %+v", got.Events)
	}

	del, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/favorites/"+id, nil)
	resp, err = http.DefaultClient.Do(del)
	if err != nil {
		t.Fatalf("DELETE favorite: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE favorite: status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.DefaultClient.Do(del)
	if err != nil {
		t.Fatalf("DELETE favorite again: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("repeat DELETE: status = %d, want 404", resp.StatusCode)
	}
}

// Dataset timestamps without an offset must land in favorites with real
// Start/End values, or the age-based sweep can never retire them.
func TestFavoriteOffsetlessTimestamps(t *testing.T) {
	t.Parallel()

	events := []model.RawEvent{
		{
			UID:   "ev-bare",
			Title: "Dawn Tea",
			Year:  testYear,
			Occurrences: []model.Occurrence{
				{StartTime: "2026-08-31 12:30:00", EndTime: "2026-08-31 14:00:00"},
			},
			OtherLocation: "3:00 & B",
		},
	}
	mux := http.NewServeMux()
	serve := func(path string, v any) {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(v)
		})
	}
	serve(fmt.Sprintf("/api/v1/%d/events", testYear), events)
	serve(fmt.Sprintf("/api/v1/%d/art", testYear), []model.ArtInstallation{})
	serve(fmt.Sprintf("/api/v1/%d/camps", testYear), []model.Camp{})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Year = testYear
	cfg.Timezone = "UTC"
	cfg.DataBaseURL = backend.URL
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.FavoritesPath = filepath.Join(dir, "favorites.json")
	cfg.RateLimitRPS = 0

	favs, err := favorites.Open(cfg.FavoritesPath)
	if err != nil {
		t.Fatalf("open favorites: %v", err)
	}
	s := NewServer(cfg, dataset.NewLoader(cfg.DataBaseURL, cfg.CacheDir), favs)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	// The processor admits the offset-less occurrence.
	var got eventsResponse
	getJSON(t, ts.URL+"/api/events?now="+url.QueryEscape("2026-08-31T12:00:00Z"), http.StatusOK, &got)
	if got.Count != 1 {
		t.Fatalf("events count = %d, want 1", got.Count)
	}

	id := "ev-bare-2026-08-31 12:30:00"
	body, _ := json.Marshal(map[string]string{"id": id})
	resp, err := http.Post(ts.URL+"/api/favorites", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST favorite: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST favorite: status = %d, want 201", resp.StatusCode)
	}

	all := favs.All()
	if len(all) != 1 {
		t.Fatalf("stored favorites = %d, want 1", len(all))
	}
	wantStart := time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)
	if !all[0].Start.Equal(wantStart) {
		t.Fatalf("stored Start = %v, want %v", all[0].Start, wantStart)
	}
	if all[0].End.IsZero() {
		t.Fatal("stored End is zero; sweep would never retire this favorite")
	}

	removed, err := favs.Sweep(all[0].End.AddDate(0, 4, 0))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("sweep removed %d, want 1", removed)
	}
}

func TestFavoriteAddUnknownOccurrence(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	body, _ := json.Marshal(map[string]string{"id": "ev-yoga-2026-01-01T00:00:00Z"})
	resp, err := http.Post(ts.URL+"/api/favorites", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST favorite: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEventsICS(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	resp, err := http.Get(ts.URL + "/api/events.ics?now=" + url.QueryEscape("2026-08-31T12:00:00Z"))
	if err != nil {
		t.Fatalf("GET ics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "Sunset Yoga") {
		t.Fatalf("unexpected calendar body:\n%s", out)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0)

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST refresh: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got struct {
		Year   int `json:"year"`
		Events int `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Year != testYear || got.Events != 2 {
		t.Fatalf("refresh summary: %+v", got)
	}
}

func TestLimiterMapBounded(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.RateLimitRPS = 1
	s := NewServer(cfg, dataset.NewLoader("http://unused.invalid", t.TempDir()), nil)

	for i := 0; i < maxTrackedClients+100; i++ {
		s.limiterFor(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	if n := len(s.limiters); n > maxTrackedClients {
		t.Fatalf("limiter map grew to %d entries, cap is %d", n, maxTrackedClients)
	}

	// A client seen before the reset still gets a limiter afterwards.
	if s.limiterFor("10.0.0.1") == nil {
		t.Fatal("limiterFor returned nil")
	}
}

func TestRateLimiting(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1)

	// Burst is rps+1, so the third immediate request must be rejected.
	limited := false
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatalf("GET /health: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("no request was rate limited")
	}
}
