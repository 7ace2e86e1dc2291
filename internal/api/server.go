// Package api serves the dashboard and the JSON API.
package api

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/afritaa/figtracker/internal/analysis"
	"github.com/afritaa/figtracker/internal/importer"
	"github.com/afritaa/figtracker/internal/store"
	"github.com/afritaa/figtracker/internal/trigger"
)

// RunAnalysisFunc runs one full analysis cycle (call, reconcile, apply).
// It is nil when no API key is configured.
type RunAnalysisFunc func(ctx context.Context, reason string) (*analysis.Result, error)

type Server struct {
	store       *store.Store
	sheets      *importer.SheetClient
	latest      *analysis.Latest
	trig        *trigger.Trigger
	runAnalysis RunAnalysisFunc
	port        string
	tmpl        *template.Template
}

func NewServer(st *store.Store, latest *analysis.Latest, trig *trigger.Trigger, run RunAnalysisFunc, port string) *Server {
	return &Server{
		store:       st,
		sheets:      importer.NewSheetClient(),
		latest:      latest,
		trig:        trig,
		runAnalysis: run,
		port:        port,
		tmpl:        newTemplates(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/observations", s.handleObservations)
	mux.HandleFunc("/api/observations/", s.handleObservationByID)
	mux.HandleFunc("/api/import", s.handleImport)
	mux.HandleFunc("/api/import/sheet", s.handleImportSheet)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/analysis", s.handleAnalysis)
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/location", s.handleLocation)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// notifyTrigger reports the post-mutation count to the debounce trigger.
func (s *Server) notifyTrigger() {
	if s.trig != nil {
		s.trig.Observe(s.store.Count())
	}
}
