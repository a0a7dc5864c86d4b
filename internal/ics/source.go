package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/coach-slot-availability/internal/availability"
)

const coachPlaceholder = "{coach_id}"

// maxFeedBytes bounds a single calendar download.
const maxFeedBytes = 8 << 20

// Source reads coach schedules from per-coach ICS feeds.
type Source struct {
	client      *http.Client
	urlTemplate string
	logger      *zap.Logger
}

// NewSource builds a Source for feeds at urlTemplate, where {coach_id} is
// replaced with the escaped coach id.
func NewSource(urlTemplate string, client *http.Client, logger *zap.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{client: client, urlTemplate: urlTemplate, logger: logger}
}

func (s *Source) feedURL(coachID string) string {
	return strings.ReplaceAll(s.urlTemplate, coachPlaceholder, url.PathEscape(coachID))
}

func (s *Source) CoachSchedule(ctx context.Context, coachID string, window availability.Window) ([]availability.RawEvent, error) {
	feed := s.feedURL(coachID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed, nil)
	if err != nil {
		return nil, fmt.Errorf("build ics request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ics for coach %s: %w", coachID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ics for coach %s: unexpected status %d", coachID, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read ics for coach %s: %w", coachID, err)
	}

	events, err := Parse(body, window)
	if err != nil {
		return nil, fmt.Errorf("coach %s: %w", coachID, err)
	}
	s.logger.Debug("ics schedule loaded",
		zap.String("coach_id", coachID),
		zap.Int("events", len(events)),
		zap.Duration("took", time.Since(started)),
	)
	return events, nil
}

var _ availability.ScheduleSource = (*Source)(nil)
