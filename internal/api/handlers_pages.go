package api

import (
	"log"
	"net/http"

	"github.com/afritaa/figtracker/internal/models"
)

type indexData struct {
	Observations    []models.Observation
	Location        *models.Location
	Prediction      *models.FruitingPrediction
	ReportText      string
	Correlations    []models.CorrelationHighlight
	AnalysisEnabled bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := indexData{
		Observations:    s.store.Records(),
		Location:        s.store.Location(),
		Prediction:      s.store.Prediction(),
		AnalysisEnabled: s.runAnalysis != nil,
	}
	if result, _ := s.latest.Get(); result != nil {
		data.ReportText = result.ReportText
		data.Correlations = renderableCorrelations(result.Correlations)
	}

	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("template error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.MigrationVersion()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"observations":     s.store.Count(),
		"migrationVersion": version,
	})
}
