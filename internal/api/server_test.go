package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/afritaa/figtracker/internal/analysis"
	"github.com/afritaa/figtracker/internal/api"
	"github.com/afritaa/figtracker/internal/models"
	"github.com/afritaa/figtracker/internal/store"
	"github.com/afritaa/figtracker/internal/trigger"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestServer(t *testing.T, s *store.Store, run api.RunAnalysisFunc) *api.Server {
	t.Helper()
	trig := trigger.New(time.Hour, 3, func() {})
	t.Cleanup(trig.Stop)
	return api.NewServer(s, &analysis.Latest{}, trig, run, "8080")
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(t, s, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status"`) {
		t.Error("expected status field in JSON response")
	}
}

func TestObservationsCRUD(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(t, s, nil)
	h := srv.Handler()

	// Create via day-first date.
	req := httptest.NewRequest("POST", "/api/observations", strings.NewReader(`{"date":"15/01/24","bats":60,"figsDropped":40}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("POST: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var created models.Observation
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Date != "2024-01-15" {
		t.Errorf("Date = %q, want normalized 2024-01-15", created.Date)
	}
	if created.ID == "" {
		t.Fatal("created observation has no id")
	}

	// Update.
	req = httptest.NewRequest("PUT", "/api/observations/"+created.ID, strings.NewReader(`{"bats":10,"figsDropped":20,"leavesDropped":30}`))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 204 {
		t.Fatalf("PUT: expected 204, got %d", w.Code)
	}

	// List.
	req = httptest.NewRequest("GET", "/api/observations", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var recs []models.Observation
	if err := json.NewDecoder(w.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Bats != 10 || recs[0].LeavesDropped != 30 {
		t.Errorf("records = %+v", recs)
	}

	// Delete.
	req = httptest.NewRequest("DELETE", "/api/observations/"+created.ID, nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 204 {
		t.Fatalf("DELETE: expected 204, got %d", w.Code)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d after delete", s.Count())
	}
}

func TestObservationBadDate(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(t, s, nil)

	req := httptest.NewRequest("POST", "/api/observations", strings.NewReader(`{"date":"not a date","bats":60}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestImportEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(t, s, nil)

	body := `{"text":"Date,Fruit,Bats\n15/01/24,40,60\n16/01/24,50,70\n"}`
	req := httptest.NewRequest("POST", "/api/import", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}

func TestImportNoValidRows(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(t, s, nil)

	req := httptest.NewRequest("POST", "/api/import", strings.NewReader(`{"text":"garbage,1,2\n"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 422 {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no valid data found") {
		t.Errorf("body = %s", w.Body.String())
	}
	if s.Count() != 0 {
		t.Errorf("failed import mutated store: Count() = %d", s.Count())
	}
}

func TestAnalyzeDisabled(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(t, s, nil)

	req := httptest.NewRequest("POST", "/api/analyze", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 503 {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAnalyzeManual(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	run := func(ctx context.Context, reason string) (*analysis.Result, error) {
		if reason != "manual" {
			t.Errorf("reason = %q, want manual", reason)
		}
		return &analysis.Result{
			ReportText: "looking good",
			Correlations: []models.CorrelationHighlight{
				{StartDate: "2024-02-20", EndDate: "2024-03-01", Type: "rain-then-drop"},
				{StartDate: "soon", EndDate: "later", Type: "bad-dates"},
			},
		}, nil
	}
	srv := newTestServer(t, s, run)

	req := httptest.NewRequest("POST", "/api/analyze", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var view struct {
		ReportText   string                        `json:"reportText"`
		Correlations []models.CorrelationHighlight `json:"correlations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.ReportText != "looking good" {
		t.Errorf("reportText = %q", view.ReportText)
	}
	// Unparseable correlation dates are dropped at render time.
	if len(view.Correlations) != 1 || view.Correlations[0].Type != "rain-then-drop" {
		t.Errorf("correlations = %+v", view.Correlations)
	}
}

func TestAnalysisEmpty(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(t, s, nil)

	req := httptest.NewRequest("GET", "/api/analysis", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestLocationRoundTrip(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(t, s, nil)
	h := srv.Handler()

	req := httptest.NewRequest("PUT", "/api/location", strings.NewReader(`{"suburb":"Ashgrove","state":"QLD","isManual":true}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("PUT: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/location", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("GET: expected 200, got %d", w.Code)
	}
	var loc models.Location
	if err := json.NewDecoder(w.Body).Decode(&loc); err != nil {
		t.Fatal(err)
	}
	if loc.Suburb != "Ashgrove" || !loc.IsManual {
		t.Errorf("location = %+v", loc)
	}
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	s.UpsertByDate(models.Observation{Date: "2024-01-15", Bats: 60, FigsDropped: 40})
	srv := newTestServer(t, s, nil)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "2024-01-15") {
		t.Error("expected observation date in page")
	}
}
