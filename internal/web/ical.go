package web

import (
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"

	"playafind/internal/events"
	appLog "playafind/internal/log"
)

// handleEventsICS serves the processed event list as an iCalendar feed so
// it can be subscribed to from a phone's calendar app. Accepts the same
// query parameters as /api/events.
func (s *Server) handleEventsICS(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("ics request: snapshot unavailable", err)
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

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//playafind//event feed//EN")

	stamp := time.Now().UTC()
	for _, pe := range processed {
		ve := cal.AddEvent(pe.ID)
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(pe.Start)
		ve.SetEndAt(pe.End)
		ve.SetSummary(pe.Title)
		if pe.Description != "" {
			ve.SetDescription(pe.Description)
		}
		if pe.LocationLabel != "" {
			ve.SetLocation(pe.LocationLabel)
		}
		if pe.URL != "" {
			ve.SetURL(pe.URL)
		}
		if pe.Coordinate != nil {
			ve.SetGeo(pe.Coordinate.Lat, pe.Coordinate.Lon)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		appLog.Error("failed to write ics response", err)
	}
}
