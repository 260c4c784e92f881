// Package web exposes the event pipeline over a small JSON API. The
// server holds the current dataset snapshot behind a RWMutex and swaps it
// wholesale on refresh; request handling only ever reads.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"playafind/internal/config"
	"playafind/internal/dataset"
	"playafind/internal/events"
	"playafind/internal/favorites"
	"playafind/internal/geo"
	"playafind/internal/geocode"
	appLog "playafind/internal/log"
	"playafind/internal/model"
)

// Server provides the HTTP API over one dataset snapshot.
type Server struct {
	cfg    *config.Config
	loader *dataset.Loader
	favs   *favorites.Store
	loc    *time.Location
	router *httprouter.Router

	mu   sync.RWMutex
	snap *dataset.Snapshot

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer constructs a Server. The first snapshot is loaded lazily on
// demand, or eagerly via Refresh.
func NewServer(cfg *config.Config, loader *dataset.Loader, favs *favorites.Store) *Server {
	s := &Server{
		cfg:      cfg,
		loader:   loader,
		favs:     favs,
		loc:      resolveLocationOrLocal(cfg.Timezone),
		router:   httprouter.New(),
		limiters: make(map[string]*rate.Limiter),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandlerFunc(http.MethodGet, "/health", s.handleHealth)
	s.router.HandlerFunc(http.MethodGet, "/api/events", s.handleEvents)
	s.router.HandlerFunc(http.MethodGet, "/api/events.ics", s.handleEventsICS)
	s.router.HandlerFunc(http.MethodGet, "/api/geocode", s.handleGeocode)
	s.router.HandlerFunc(http.MethodGet, "/api/favorites", s.handleFavoritesList)
	s.router.HandlerFunc(http.MethodPost, "/api/favorites", s.handleFavoriteAdd)
	s.router.DELETE("/api/favorites/:id", s.handleFavoriteDelete)
	s.router.HandlerFunc(http.MethodPost, "/api/refresh", s.handleRefresh)
}

// Handler returns the full middleware stack: rate limiting inside, CORS
// outside.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.cfg.RateLimitRPS > 0 {
		h = s.rateLimitMiddleware(h)
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(h)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Refresh loads a fresh snapshot and swaps it in.
func (s *Server) Refresh(ctx context.Context) error {
	snap, err := s.loader.Refresh(ctx, s.cfg.Year)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	appLog.Info("dataset snapshot refreshed",
		"year", snap.Year,
		"events", len(snap.Events),
		"art", snap.Index.ArtCount(),
		"camps", snap.Index.CampCount(),
	)
	return nil
}

// snapshot returns the current snapshot, loading one on first use.
func (s *Server) snapshot(ctx context.Context) (*dataset.Snapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, nil
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(clientIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// maxTrackedClients bounds the limiter map; past it the whole map is
// reset, which at worst grants each client one fresh burst.
const maxTrackedClients = 4096

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	if lim, ok := s.limiters[ip]; ok {
		return lim
	}
	if len(s.limiters) >= maxTrackedClients {
		s.limiters = make(map[string]*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), int(s.cfg.RateLimitRPS)+1)
	s.limiters[ip] = lim
	return lim
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON shape for /api/events.
type eventsResponse struct {
	Events    []model.ProcessedEvent `json:"events"`
	Count     int                    `json:"count"`
	Year      int                    `json:"year"`
	FetchedAt time.Time              `json:"fetched_at"`
}

// handleEvents runs one processing pass over the current snapshot.
//
// GET /api/events?lat=..&lon=..&radius=..&window=..&types=a,b&active=1
// &upcoming=1&favorites=1&sort=distance&now=RFC3339
//
// The now override lets a client ask "what is on at 9pm on burn night"
// deterministically.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("events request: snapshot unavailable", err)
		writeError(w, http.StatusBadGateway, "dataset unavailable")
		return
	}

	params, strategy, err := s.paramsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	processed := events.Process(snap.Events, snap.Index, params)
	processed = events.Sort(processed, strategy)

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:    processed,
		Count:     len(processed),
		Year:      snap.Year,
		FetchedAt: snap.FetchedAt,
	})
}

func (s *Server) paramsFromQuery(r *http.Request) (events.Params, events.SortStrategy, error) {
	q := r.URL.Query()

	p := events.Params{
		RadiusMeters:      s.cfg.DefaultRadiusMeters,
		TimeWindowMinutes: s.cfg.DefaultWindowMinutes,
		Location:          s.loc,
		ActiveOnly:        parseBool(q.Get("active")),
		UpcomingOnly:      parseBool(q.Get("upcoming")),
		FavoritesOnly:     parseBool(q.Get("favorites")),
	}

	if latStr, lonStr := q.Get("lat"), q.Get("lon"); latStr != "" && lonStr != "" {
		lat, err1 := strconv.ParseFloat(latStr, 64)
		lon, err2 := strconv.ParseFloat(lonStr, 64)
		if err1 != nil || err2 != nil {
			return p, "", errors.New("malformed lat/lon")
		}
		p.ViewerLocation = &geo.Coordinate{Lat: lat, Lon: lon}
	}
	if v := q.Get("radius"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			return p, "", errors.New("malformed radius")
		}
		p.RadiusMeters = radius
	}
	if v := q.Get("window"); v != "" {
		window, err := strconv.Atoi(v)
		if err != nil || window <= 0 {
			return p, "", errors.New("malformed window")
		}
		p.TimeWindowMinutes = window
	}
	if v := q.Get("types"); v != "" {
		p.EventTypes = make(map[string]bool)
		for _, abbr := range strings.Split(v, ",") {
			if abbr = strings.TrimSpace(abbr); abbr != "" {
				p.EventTypes[abbr] = true
			}
		}
	}
	if v := q.Get("now"); v != "" {
		now, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return p, "", errors.New("malformed now override")
		}
		p.Now = now
	}
	if p.FavoritesOnly {
		p.FavoriteIDs = s.favs.IDs()
	}

	strategy := events.SortDefault
	if v := q.Get("sort"); v != "" {
		strategy = events.SortStrategy(v)
	}
	return p, strategy, nil
}

// handleGeocode resolves a single address string.
//
// GET /api/geocode?address=6:00%20%26%20D
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing address parameter")
		return
	}

	coord, err := geocode.ResolveAddress(address)
	if err != nil {
		var pe *geo.ParseError
		if errors.As(err, &pe) {
			writeError(w, http.StatusBadRequest, pe.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "geocoding failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Address string  `json:"address"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}{Address: address, Lat: coord.Lat, Lon: coord.Lon})
}

func (s *Server) handleFavoritesList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.favs.All())
}

// handleFavoriteAdd stores a favorite snapshot for a composite occurrence
// ID taken from the current dataset.
//
// POST /api/favorites {"id": "<event uid>-<raw start>"}
func (s *Server) handleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"id\": ...}")
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "dataset unavailable")
		return
	}

	fav, ok := s.favoriteFromID(snap, req.ID)
	if !ok {
		writeError(w, http.StatusNotFound, "no such occurrence")
		return
	}
	if err := s.favs.Add(fav); err != nil {
		appLog.Error("favorite add failed", err, "id", req.ID)
		writeError(w, http.StatusInternalServerError, "failed to save favorite")
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

func (s *Server) handleFavoriteDelete(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	removed, err := s.favs.Remove(id)
	if err != nil {
		appLog.Error("favorite remove failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to remove favorite")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not a favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// favoriteFromID locates the (event, occurrence) pair behind a composite
// ID and builds its stored snapshot.
func (s *Server) favoriteFromID(snap *dataset.Snapshot, id string) (model.FavoriteEvent, bool) {
	for _, ev := range snap.Events {
		if ev.UID == "" || !strings.HasPrefix(id, ev.UID+"-") {
			continue
		}
		rawStart := id[len(ev.UID)+1:]
		for _, occ := range ev.Occurrences {
			if occ.StartTime != rawStart {
				continue
			}
			pe := model.ProcessedEvent{
				ID:       id,
				EventUID: ev.UID,
				Title:    ev.Title,
			}
			if ev.EventType != nil {
				pe.Type = ev.EventType.Label
				pe.TypeAbbr = ev.EventType.Abbr
			}
			if start, err := events.ParseEventTime(occ.StartTime, s.loc); err == nil {
				pe.Start = start
			}
			if end, err := events.ParseEventTime(occ.EndTime, s.loc); err == nil {
				pe.End = end
			}
			pe.LocationLabel = snap.Index.ResolveLocation(ev).Label
			return favorites.Snapshot(pe, time.Now().UTC()), true
		}
	}
	return model.FavoriteEvent{}, false
}

// handleRefresh forces a dataset reload, propagating loader failures.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, struct {
		Year      int       `json:"year"`
		Events    int       `json:"events"`
		FetchedAt time.Time `json:"fetched_at"`
	}{Year: snap.Year, Events: len(snap.Events), FetchedAt: snap.FetchedAt})
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone, falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
