// Package dvmn scrapes the public attendance history of dvmn.org users.
package dvmn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/attendance"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

const errDomain = "attendance"

// DefaultHistoryURL is formatted with the dvmn username.
const DefaultHistoryURL = "https://dvmn.org/user/%s/history/"

// Selectors of the history page.
const (
	selectorTable = ".logtable"
	selectorBlock = ".mt-4 .mb-4"
	selectorLabel = ".align-items-center"
)

// Config for the scraper.
type Config struct {
	// HistoryURL must contain exactly one %s.
	HistoryURL string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// TimelineScraper fetches day lines, newest first, from the history page.
type TimelineScraper struct {
	historyURL string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ attendance.TimelineSource = (*TimelineScraper)(nil)

// NewTimelineScraper creates a scraper.
func NewTimelineScraper(config Config) *TimelineScraper {
	if config.HistoryURL == "" {
		config.HistoryURL = DefaultHistoryURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &TimelineScraper{
		historyURL: config.HistoryURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     config.Logger.With("component", "dvmn_scraper"),
	}
}

// FetchTimeline downloads the history page of username and returns the raw
// label text of every day block in page order.
func (s *TimelineScraper) FetchTimeline(ctx context.Context, username string) ([]string, error) {
	const op = "FetchTimeline"

	target := fmt.Sprintf(s.historyURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, shared.NewTransportError(errDomain, op, "create request", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, shared.NewTransportError(errDomain, op, "fetch history page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, shared.NewTransportError(errDomain, op, fmt.Sprintf("history page returned status %d", resp.StatusCode), nil)
	}

	lines, err := ExtractTimeline(resp.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("timeline fetched", "username", username, "days", len(lines))
	return lines, nil
}

// ExtractTimeline parses a history page document.
func ExtractTimeline(r io.Reader) ([]string, error) {
	const op = "ExtractTimeline"

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, shared.NewParseError(errDomain, op, "read html", err)
	}

	table := doc.Find(selectorTable).First()
	if table.Length() == 0 {
		return nil, shared.NewParseError(errDomain, op, "history table not found", nil)
	}

	blocks := table.Find(selectorBlock)
	lines := make([]string, 0, blocks.Length())

	var parseErr error
	blocks.EachWithBreak(func(i int, block *goquery.Selection) bool {
		label := block.Find(selectorLabel).First()
		if label.Length() == 0 {
			parseErr = shared.NewParseError(errDomain, op, fmt.Sprintf("day block %d has no label", i), nil)
			return false
		}
		lines = append(lines, strings.TrimSpace(label.Text()))
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return lines, nil
}
