package api

import (
	"github.com/afritaa/figtracker/internal/analysis"
	"github.com/afritaa/figtracker/internal/models"
	"github.com/afritaa/figtracker/internal/normalize"
)

// analysisView shapes a reconciled result for JSON and template output.
// Correlation entries only make it this far if both of their dates parse;
// reconciliation keeps them, rendering drops them.
func analysisView(result *analysis.Result) map[string]any {
	return map[string]any{
		"reportText":   result.ReportText,
		"prediction":   result.Prediction,
		"correlations": renderableCorrelations(result.Correlations),
		"sources":      result.Sources,
	}
}

func renderableCorrelations(entries []models.CorrelationHighlight) []models.CorrelationHighlight {
	out := make([]models.CorrelationHighlight, 0, len(entries))
	for _, c := range entries {
		if _, err := normalize.Date(c.StartDate); err != nil {
			continue
		}
		if _, err := normalize.Date(c.EndDate); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
