// Package importer converts raw delimited text (pasted spreadsheet exports,
// fetched sheet CSVs) into normalized observation rows ready to merge into
// the store.
package importer

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/afritaa/figtracker/internal/metrics"
	"github.com/afritaa/figtracker/internal/models"
	"github.com/afritaa/figtracker/internal/normalize"
)

// ErrNoValidRows is returned when not a single line of an import batch
// yields a usable observation. Callers surface it without touching the
// store.
var ErrNoValidRows = errors.New("no valid data found")

// Parse reads a comma-delimited blob with columns date, figsDropped, bats.
// A leading header row is detected and skipped; rows with unparseable dates
// are dropped silently. Imported rows carry no leaves-dropped column, so it
// defaults to 0.
func Parse(text string) ([]models.Observation, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	var rows []models.Observation
	header := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if header {
			header = false
			if isHeader(line) {
				continue
			}
		}

		fields := strings.Split(line, ",")
		date, err := normalize.Date(fields[0])
		if err != nil {
			metrics.ImportRowsSkipped.Inc()
			continue
		}

		obs := models.Observation{
			ID:   uuid.NewString(),
			Date: date,
		}
		if len(fields) > 1 {
			obs.FigsDropped = normalize.ClampPercent(fields[1])
		}
		if len(fields) > 2 {
			obs.Bats = normalize.ClampPercent(fields[2])
		}
		rows = append(rows, obs)
		metrics.ImportRowsParsed.Inc()
	}

	if len(rows) == 0 {
		return nil, ErrNoValidRows
	}
	return rows, nil
}

// isHeader reports whether the first non-empty line looks like column
// titles rather than data.
func isHeader(line string) bool {
	l := strings.ToLower(line)
	return strings.Contains(l, "date") || strings.Contains(l, "fruit") || strings.Contains(l, "bat")
}
