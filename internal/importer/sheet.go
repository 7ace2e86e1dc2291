package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// ExtractSheetID pulls the document ID out of a Google Sheets share link.
func ExtractSheetID(link string) (string, error) {
	m := sheetIDPattern.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("not a google sheets link: %q", link)
	}
	return m[1], nil
}

// SheetClient downloads published spreadsheet CSV exports. Rate limits and
// server errors are retried with exponential backoff; other HTTP failures
// are permanent.
type SheetClient struct {
	client *http.Client
}

func NewSheetClient() *SheetClient {
	return &SheetClient{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchCSV resolves a share link to its CSV export URL and returns the raw
// text. A fetch failure fails the whole import; there is no partial result.
func (s *SheetClient) FetchCSV(ctx context.Context, link string) (string, error) {
	id, err := ExtractSheetID(link)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", id)
	return s.fetchURL(ctx, url)
}

func (s *SheetClient) fetchURL(ctx context.Context, url string) (string, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch sheet: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch sheet: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch sheet: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}

	return string(body), nil
}
