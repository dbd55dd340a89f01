package statusapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/value"
)

// deviceSummary is the wire shape for one device's registration plus its
// latest reading, if any.
type deviceSummary struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Direction    string  `json:"direction"`
	Units        string  `json:"units,omitempty"`
	Owner        string  `json:"owner,omitempty"`
	HistoryDepth int     `json:"history_depth,omitempty"`
	Value        *string `json:"value,omitempty"`
	Timestamp    *string `json:"timestamp,omitempty"`
}

func directionString(d backend.Direction) string {
	if d == backend.ReadWrite {
		return "read-write"
	}
	return "read-only"
}

func summarize(rec backend.Record, reading backend.Reading, hasReading bool) deviceSummary {
	s := deviceSummary{
		Name:         string(rec.Name),
		Type:         rec.Type.String(),
		Direction:    directionString(rec.Direction),
		Units:        rec.Units,
		Owner:        rec.Owner,
		HistoryDepth: rec.HistoryDepth,
	}
	if hasReading {
		v := reading.Value.String()
		ts := reading.Timestamp.UTC().Format(time.RFC3339Nano)
		s.Value = &v
		s.Timestamp = &ts
	}
	return s
}

// handleHealth reports that the server is up; no dependency checks
// beyond the process itself being able to answer.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleListDevices returns every registered device with its latest
// reading (if any).
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := s.be.Records(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	summaries := make([]deviceSummary, 0, len(records))
	for _, rec := range records {
		reading, ok, err := s.be.Latest(ctx, rec.Name)
		if err != nil {
			writeInternalError(w, "failed to read device state")
			return
		}
		summaries = append(summaries, summarize(rec, reading, ok))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": summaries, "count": len(summaries)})
}

// handleGetDevice returns one device's registration and latest reading.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := value.Name(chi.URLParam(r, "name"))
	ctx := r.Context()

	rec, err := s.be.Record(ctx, name)
	if err != nil {
		writeNotFound(w, "unknown device")
		return
	}
	reading, ok, err := s.be.Latest(ctx, name)
	if err != nil {
		writeInternalError(w, "failed to read device state")
		return
	}
	writeJSON(w, http.StatusOK, summarize(rec, reading, ok))
}

// instanceSummary reports one configured driver instance, for
// /drivers status visibility.
type instanceSummary struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

// handleListDrivers returns the configured driver instances the
// supervisor is hosting.
func (s *Server) handleListDrivers(w http.ResponseWriter, _ *http.Request) {
	specs := s.supervisor.Instances()
	summaries := make([]instanceSummary, 0, len(specs))
	for _, spec := range specs {
		summaries = append(summaries, instanceSummary{Name: spec.Name, Prefix: string(spec.Prefix)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": summaries, "count": len(summaries)})
}
