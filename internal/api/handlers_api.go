package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/afritaa/figtracker/internal/importer"
	"github.com/afritaa/figtracker/internal/metrics"
	"github.com/afritaa/figtracker/internal/models"
	"github.com/afritaa/figtracker/internal/normalize"
	"github.com/afritaa/figtracker/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// observationInput is the mutable subset accepted from clients. Dates are
// normalized server-side; activity values are clamped to 0-100.
type observationInput struct {
	Date          string `json:"date"`
	Bats          int    `json:"bats"`
	FigsDropped   int    `json:"figsDropped"`
	LeavesDropped int    `json:"leavesDropped"`
}

func (in observationInput) toObservation() models.Observation {
	return models.Observation{
		Date:          in.Date,
		Bats:          normalize.Clamp(in.Bats),
		FigsDropped:   normalize.Clamp(in.FigsDropped),
		LeavesDropped: normalize.Clamp(in.LeavesDropped),
	}
}

func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Records())
	case http.MethodPost:
		var in observationInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
		date, err := normalize.Date(in.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: "+in.Date)
			return
		}
		in.Date = date

		rec, err := s.store.UpsertByDate(in.toObservation())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.notifyTrigger()
		writeJSON(w, http.StatusOK, rec)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleObservationByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/observations/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		var in observationInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
		if err := s.store.UpdateByID(id, in.toObservation()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.notifyTrigger()
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.store.RemoveByID(id); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.notifyTrigger()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) mergeBatch(w http.ResponseWriter, source string, rows []models.Observation, parseErr error) {
	if parseErr != nil {
		if errors.Is(parseErr, importer.ErrNoValidRows) {
			metrics.ImportBatches.WithLabelValues(source, "empty").Inc()
			writeError(w, http.StatusUnprocessableEntity, parseErr.Error())
			return
		}
		metrics.ImportBatches.WithLabelValues(source, "error").Inc()
		writeError(w, http.StatusBadGateway, parseErr.Error())
		return
	}

	if err := s.store.MergeImportBatch(rows); err != nil {
		if errors.Is(err, store.ErrNoValidRows) {
			metrics.ImportBatches.WithLabelValues(source, "empty").Inc()
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.ImportBatches.WithLabelValues(source, "ok").Inc()
	s.notifyTrigger()
	writeJSON(w, http.StatusOK, map[string]int{
		"imported": len(rows),
		"total":    s.store.Count(),
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	rows, err := importer.Parse(req.Text)
	s.mergeBatch(w, "paste", rows, err)
}

func (s *Server) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	text, err := s.sheets.FetchCSV(r.Context(), req.Link)
	if err != nil {
		metrics.ImportBatches.WithLabelValues("sheet", "error").Inc()
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	rows, err := importer.Parse(text)
	s.mergeBatch(w, "sheet", rows, err)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.runAnalysis == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis disabled: set OPENAI_API_KEY to enable it")
		return
	}

	// Manual runs cancel any pending debounce so we don't fire twice.
	if s.trig != nil {
		s.trig.CancelPending()
	}

	result, err := s.runAnalysis(r.Context(), "manual")
	if err != nil {
		log.Printf("api: manual analysis failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analysisView(result))
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	result, at := s.latest.Get()
	if result == nil {
		writeError(w, http.StatusNotFound, "no analysis yet")
		return
	}
	view := analysisView(result)
	view["completedAt"] = at
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pred := s.store.Prediction()
	if pred == nil {
		writeError(w, http.StatusNotFound, "no prediction yet")
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		loc := s.store.Location()
		if loc == nil {
			writeError(w, http.StatusNotFound, "no location set")
			return
		}
		writeJSON(w, http.StatusOK, loc)
	case http.MethodPut:
		var loc models.Location
		if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
		if err := s.store.SetLocation(loc); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, loc)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
