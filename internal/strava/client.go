package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/exaphy/stravasync/internal/config"
)

const (
	defaultBaseURL    = "https://www.strava.com/api/v3"
	perPage           = 200
	defaultRetryAfter = 15 * time.Second
	baseBackoff       = 1 * time.Second
)

// ErrUnavailable is returned once transient retries against the Strava API
// are exhausted. No partial results are returned alongside it.
var ErrUnavailable = errors.New("strava: service unavailable")

// Client reads club activities from the Strava API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	accessToken  string
	clubID       string
	activityType string
	maxRetries   int
	logger       zerolog.Logger
}

// NewClient creates a new Strava API client
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
		accessToken:  cfg.StravaAccessToken,
		clubID:       cfg.StravaClubID,
		activityType: cfg.ActivityType,
		maxRetries:   cfg.MaxRetries,
		logger:       logger.With().Str("component", "strava").Logger(),
	}
}

// activityPayload mirrors the club activities wire format.
type activityPayload struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Athlete        Athlete `json:"athlete"`
	StartDateLocal string  `json:"start_date_local"`
	Distance       float64 `json:"distance"`
	MovingTime     int64   `json:"moving_time"`
	ElapsedTime    int64   `json:"elapsed_time"`
	ElevationGain  float64 `json:"total_elevation_gain"`
}

// FetchWindow retrieves every club activity whose start time falls inside the
// window. Pages are followed until the API returns an empty batch; activities
// outside the window or of the wrong type are dropped even when the API
// returns a superset. A fresh call always restarts from the first page.
func (c *Client) FetchWindow(ctx context.Context, w Window) ([]Activity, error) {
	var activities []Activity

	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		pageMatches := 0
		for _, p := range batch {
			if c.activityType != "" && p.Type != c.activityType {
				continue
			}
			started, err := time.Parse(time.RFC3339, p.StartDateLocal)
			if err != nil {
				c.logger.Warn().Str("activity_id", strconv.FormatInt(p.ID, 10)).
					Str("start_date_local", p.StartDateLocal).
					Msg("skipping activity with unparsable start date")
				continue
			}
			if !w.Contains(started) {
				continue
			}
			pageMatches++
			activities = append(activities, Activity{
				ID:                  strconv.FormatInt(p.ID, 10),
				Name:                p.Name,
				Type:                p.Type,
				Athlete:             p.Athlete,
				StartDate:           started,
				DistanceMeters:      p.Distance,
				MovingTimeSec:       p.MovingTime,
				ElapsedTimeSec:      p.ElapsedTime,
				ElevationGainMeters: p.ElevationGain,
			})
		}

		c.logger.Debug().Int("page", page).Int("batch", len(batch)).
			Int("in_window", pageMatches).Msg("fetched activities page")
	}

	return activities, nil
}

// fetchPage requests one page of club activities. Rate-limit responses block
// for the server-specified interval and retry the same page without consuming
// an attempt; transient failures retry with exponential backoff until the
// attempt budget is spent.
func (c *Client) fetchPage(ctx context.Context, page int) ([]activityPayload, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; {
		batch, retryAfter, err := c.doPage(ctx, page)
		if err == nil {
			return batch, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return nil, err
		}

		if retryAfter > 0 {
			// Rate limited: suspend and resume from the same cursor.
			c.logger.Warn().Int("page", page).Dur("retry_after", retryAfter).
				Msg("strava rate limit hit, waiting")
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return nil, err
			}
			continue
		}

		lastErr = err
		c.logger.Warn().Int("page", page).Int("attempt", attempt).
			Int("max_retries", c.maxRetries).Err(err).Msg("strava page fetch failed")
		if attempt == c.maxRetries {
			break
		}
		if err := sleepCtx(ctx, baseBackoff<<(attempt-1)); err != nil {
			return nil, err
		}
		attempt++
	}

	return nil, fmt.Errorf("%w: page %d failed after %d attempts: %s",
		ErrUnavailable, page, c.maxRetries, lastErr)
}

// doPage performs a single request. A positive retryAfter signals a
// rate-limit response.
func (c *Client) doPage(ctx context.Context, page int) ([]activityPayload, time.Duration, error) {
	endpoint := fmt.Sprintf("%s/clubs/%s/activities", c.baseURL, url.PathEscape(c.clubID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryAfterDelay(resp), fmt.Errorf("rate limited")
	case resp.StatusCode >= 500:
		return nil, 0, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, 0, &permanentError{status: resp.StatusCode}
	}

	var batch []activityPayload
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, 0, fmt.Errorf("failed to decode activities: %w", err)
	}

	return batch, 0, nil
}

// permanentError marks responses that retrying cannot fix, such as a revoked
// token or a bad club ID.
type permanentError struct {
	status int
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("strava: status %d", e.status)
}

// retryAfterDelay reads the Retry-After header, falling back to a fixed wait.
func retryAfterDelay(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
