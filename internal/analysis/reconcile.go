package analysis

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/afritaa/figtracker/internal/metrics"
	"github.com/afritaa/figtracker/internal/models"
	"github.com/afritaa/figtracker/internal/normalize"
)

// Markers delimiting the structured block inside a response.
const (
	startMarker = "[DATA_START]"
	endMarker   = "[DATA_END]"
)

// Response is the inbound shape from the AI collaborator. Grounding
// metadata is optional; the chat transport leaves it nil.
type Response struct {
	Text              string
	GroundingMetadata *GroundingMetadata
}

type GroundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks"`
}

type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Result is the reconciled view of one analysis response.
type Result struct {
	ReportText   string
	Prediction   *models.FruitingPrediction
	Weather      []models.WeatherEntry
	Correlations []models.CorrelationHighlight
	Sources      []WebSource
}

// payload is the structured block between the markers.
type payload struct {
	Prediction    *models.FruitingPrediction    `json:"prediction"`
	WeatherMatrix []models.WeatherEntry         `json:"weatherMatrix"`
	Correlations  []models.CorrelationHighlight `json:"correlations"`
}

// Reconcile splits a raw response into report text and structured data.
// A missing or malformed payload never fails the operation: the structured
// fields just come back empty. Correlation entries are kept as-is here;
// ones with unparseable dates are skipped at render time.
func Reconcile(resp Response) Result {
	result := Result{Sources: webSources(resp.GroundingMetadata)}

	text := resp.Text
	start := strings.Index(text, startMarker)
	end := strings.Index(text, endMarker)

	if start < 0 || end < 0 || end < start {
		result.ReportText = strings.TrimSpace(text)
		return result
	}

	result.ReportText = strings.TrimSpace(text[:start])

	raw := text[start+len(startMarker) : end]
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Printf("analysis: payload parse failed: %v", err)
		metrics.PayloadParseFailures.Inc()
		return result
	}

	if p.Prediction != nil {
		p.Prediction.Confidence = normalize.Clamp(p.Prediction.Confidence)
	}
	result.Prediction = p.Prediction
	result.Weather = p.WeatherMatrix
	result.Correlations = p.Correlations
	return result
}

func webSources(gm *GroundingMetadata) []WebSource {
	if gm == nil {
		return nil
	}
	var sources []WebSource
	for _, c := range gm.GroundingChunks {
		if c.Web != nil {
			sources = append(sources, *c.Web)
		}
	}
	return sources
}
