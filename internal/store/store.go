// Package store owns the canonical observation list and its sqlite-backed
// persistence. All mutations are serialized behind a mutex and written
// through to the app_state table before returning, so a reload always
// reconstructs an identical store.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/afritaa/figtracker/internal/metrics"
	"github.com/afritaa/figtracker/internal/models"
)

// Storage keys under app_state. The values are JSON documents.
const (
	keyObservations = "fig_observations"
	keyLocation     = "fig_location"
	keyPrediction   = "fig_prediction"
)

// ErrNoValidRows mirrors the importer's batch failure: merging an empty
// batch is refused so a bad import can never wipe the store.
var ErrNoValidRows = errors.New("no valid data found")

type Store struct {
	db *sql.DB

	mu         sync.Mutex
	records    []models.Observation
	location   *models.Location
	prediction *models.FruitingPrediction
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load reconstructs the in-memory state from app_state. Missing keys are
// fine; a fresh database starts empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.location = nil
	s.prediction = nil

	if err := s.loadJSON(keyObservations, &s.records); err != nil {
		return fmt.Errorf("load observations: %w", err)
	}
	if err := s.loadJSON(keyLocation, &s.location); err != nil {
		return fmt.Errorf("load location: %w", err)
	}
	if err := s.loadJSON(keyPrediction, &s.prediction); err != nil {
		return fmt.Errorf("load prediction: %w", err)
	}

	sortByDateDesc(s.records)
	metrics.ObservationsStored.Set(float64(len(s.records)))
	return nil
}

func (s *Store) loadJSON(key string, dest any) error {
	var value string
	err := s.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), dest)
}

func (s *Store) saveJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, string(b))
	return err
}

func (s *Store) persistRecords() error {
	metrics.ObservationsStored.Set(float64(len(s.records)))
	return s.saveJSON(keyObservations, s.records)
}

// Records returns a copy of the canonical list, newest date first.
func (s *Store) Records() []models.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Observation, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns the number of stored observations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// UpsertByDate records a manual entry. If an observation already exists for
// the date, only the three activity fields are overwritten; its id and any
// AI-supplied temp/rainfall survive. Otherwise the record is inserted with
// a fresh id.
func (s *Store) UpsertByDate(rec models.Observation) (models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].Date == rec.Date {
			s.records[i].Bats = rec.Bats
			s.records[i].FigsDropped = rec.FigsDropped
			s.records[i].LeavesDropped = rec.LeavesDropped
			rec = s.records[i]
			return rec, s.persistRecords()
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.records = append(s.records, rec)
	sortByDateDesc(s.records)
	return rec, s.persistRecords()
}

// UpdateByID patches the activity fields of an existing record. Unknown ids
// are a silent no-op.
func (s *Store) UpdateByID(id string, patch models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Bats = patch.Bats
			s.records[i].FigsDropped = patch.FigsDropped
			s.records[i].LeavesDropped = patch.LeavesDropped
			return s.persistRecords()
		}
	}
	return nil
}

// RemoveByID deletes a record. Unknown ids are a silent no-op.
func (s *Store) RemoveByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return s.persistRecords()
		}
	}
	return nil
}

// MergeImportBatch merges imported rows into the store. An imported date
// replaces any existing record for that date wholesale (imports are
// authoritative, including the implicit leavesDropped=0 and the absence of
// temp/rainfall); all other records are kept.
func (s *Store) MergeImportBatch(recs []models.Observation) error {
	if len(recs) == 0 {
		return ErrNoValidRows
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imported := make(map[string]bool, len(recs))
	for _, r := range recs {
		imported[r.Date] = true
	}

	merged := make([]models.Observation, 0, len(s.records)+len(recs))
	for _, r := range s.records {
		if !imported[r.Date] {
			merged = append(merged, r)
		}
	}
	// Last row wins when the batch itself repeats a date.
	byDate := make(map[string]int, len(recs))
	for _, r := range recs {
		if i, ok := byDate[r.Date]; ok {
			merged[i] = r
			continue
		}
		merged = append(merged, r)
		byDate[r.Date] = len(merged) - 1
	}

	sortByDateDesc(merged)
	s.records = merged
	return s.persistRecords()
}

// ApplyWeather attaches temp/rainfall from an analysis response to the
// observations whose dates match exactly. Entries with no matching
// observation are dropped; the store never grows here.
func (s *Store) ApplyWeather(entries []models.WeatherEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byDate := make(map[string]models.WeatherEntry, len(entries))
	for _, e := range entries {
		byDate[e.Date] = e
	}

	changed := false
	for i := range s.records {
		e, ok := byDate[s.records[i].Date]
		if !ok {
			continue
		}
		t, r := e.Temp, e.Rainfall
		s.records[i].Temp = &t
		s.records[i].Rainfall = &r
		changed = true
	}
	if !changed {
		return nil
	}
	return s.persistRecords()
}

func (s *Store) Location() *models.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

func (s *Store) SetLocation(loc models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = &loc
	return s.saveJSON(keyLocation, s.location)
}

func (s *Store) Prediction() *models.FruitingPrediction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prediction == nil {
		return nil
	}
	p := *s.prediction
	return &p
}

func (s *Store) SetPrediction(p models.FruitingPrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prediction = &p
	return s.saveJSON(keyPrediction, s.prediction)
}

// sortByDateDesc orders newest first. ISO dates compare correctly as
// strings.
func sortByDateDesc(recs []models.Observation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Date > recs[j].Date
	})
}
