// Package analysis talks to the AI collaborator and reconciles its
// free-text responses into structured phenology data.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/afritaa/figtracker/internal/metrics"
	"github.com/afritaa/figtracker/internal/models"
)

// ErrInsufficientData is returned before any network call when fewer than
// MinObservations records exist.
var ErrInsufficientData = errors.New("at least 3 observations required for analysis")

// MinObservations is the smallest record count worth analyzing.
const MinObservations = 3

// Client handles AI analysis calls.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates an analysis client.
// It reads the OPENAI_API_KEY environment variable for authentication.
func NewClient(model string) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Client{client: client, model: model}, nil
}

// Analyze sends the observation history to the model and returns its raw
// response. Reconciliation of the text into structured data is the
// caller's next step via Reconcile.
func (c *Client) Analyze(ctx context.Context, observations []models.Observation, location *models.Location) (Response, error) {
	if len(observations) < MinObservations {
		return Response{}, ErrInsufficientData
	}

	prompt := buildPrompt(observations, location)

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	metrics.AnalysisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return Response{}, fmt.Errorf("analysis call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Response{}, errors.New("no completion returned")
	}

	return Response{Text: resp.Choices[0].Message.Content}, nil
}

// buildPrompt renders the observation history oldest-first plus the
// location, and asks for a prose report followed by a marker-delimited
// JSON block.
func buildPrompt(observations []models.Observation, location *models.Location) string {
	recs := make([]models.Observation, len(observations))
	copy(recs, observations)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date < recs[j].Date })

	var b strings.Builder
	b.WriteString("You are helping track the phenology of a fig tree and the fruit bats that visit it.\n")
	if loc := locationString(location); loc != "" {
		fmt.Fprintf(&b, "The tree is located in %s.\n", loc)
	}
	b.WriteString("Daily observations (percent of peak activity):\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "- %s: bats %d%%, figs dropped %d%%, leaves dropped %d%%\n",
			r.Date, r.Bats, r.FigsDropped, r.LeavesDropped)
	}
	b.WriteString(`
Write a short report on what the data suggests about the tree's cycle and the bats' behaviour, using local historical weather to fill in context. Then append a machine-readable block delimited by the literal markers ` + startMarker + ` and ` + endMarker + ` containing a single JSON object with optional keys:
  "prediction": {"window", "confidence" (0-100), "reasoning", "influencers": [{"label", "impact", "description"}]}
  "weatherMatrix": [{"date": "YYYY-MM-DD", "temp", "rainfall"}] covering the observation dates
  "correlations": [{"startDate", "endDate", "type", "description"}]
`)
	return b.String()
}

func locationString(loc *models.Location) string {
	if loc == nil {
		return ""
	}
	var parts []string
	for _, p := range []string{loc.Suburb, loc.State, loc.Postcode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 && loc.Latitude != nil && loc.Longitude != nil {
		return fmt.Sprintf("%.4f, %.4f", *loc.Latitude, *loc.Longitude)
	}
	return strings.Join(parts, ", ")
}
