package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/exaphy/stravasync/internal/config"
)

const (
	defaultBaseURL    = "https://api.notion.com/v1"
	notionVersion     = "2022-06-28"
	queryPageSize     = 100
	defaultRetryAfter = 3 * time.Second
	baseBackoff       = 1 * time.Second
)

// ErrUnavailable is returned when the Notion API stays unreachable after the
// retry budget is spent.
var ErrUnavailable = errors.New("notion: service unavailable")

// Property names on the activities database.
const (
	propAthlete     = "Athlete"
	propActivity    = "Activity"
	propStravaID    = "Strava ID"
	propDate        = "Date"
	propDistance    = "Distance (mi)"
	propMovingTime  = "Moving Time"
	propElapsedTime = "Elapsed Time"
	propElevation   = "Elevation (ft)"
)

// Client talks to the Notion API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries int
	logger     zerolog.Logger
}

// NewClient creates a new Notion API client
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      cfg.NotionToken,
		maxRetries: cfg.MaxRetries,
		logger:     logger.With().Str("component", "notion").Logger(),
	}
}

// Wire types shared by reads and writes. plain_text is populated on reads,
// text.content on writes.
type richText struct {
	PlainText string       `json:"plain_text,omitempty"`
	Text      *textContent `json:"text,omitempty"`
}

type textContent struct {
	Content string `json:"content"`
}

type dateValue struct {
	Start string `json:"start"`
}

type property struct {
	Title    []richText `json:"title,omitempty"`
	RichText []richText `json:"rich_text,omitempty"`
	Number   *float64   `json:"number,omitempty"`
	Date     *dateValue `json:"date,omitempty"`
}

type pageObject struct {
	ID         string              `json:"id"`
	Properties map[string]property `json:"properties"`
}

type queryResponse struct {
	Results    []pageObject `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

// BuildIndex pages through a database exhaustively and indexes every row by
// its Strava ID property. Rows without one (hand-created pages) are ignored.
// Duplicate Strava IDs keep the first-seen row; later copies are reported.
func (c *Client) BuildIndex(ctx context.Context, databaseID string) (*Index, error) {
	index := NewIndex()

	err := c.queryPages(ctx, databaseID, func(p pageObject) {
		record, ok := recordFromPage(p)
		if !ok {
			c.logger.Debug().Str("page_id", p.ID).Msg("skipping page without a Strava ID")
			return
		}
		if existing, dup := index.Add(record); dup {
			c.logger.Warn().Str("strava_id", record.ExternalID).
				Str("kept_page_id", existing.PageID).
				Str("ignored_page_id", record.PageID).
				Msg("duplicate destination record, keeping first-seen page")
		}
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("records", index.Len()).
		Int("duplicates", len(index.Duplicates())).Msg("destination index built")
	return index, nil
}

// ListPageIDs returns the IDs of every row in a database, in pagination order.
func (c *Client) ListPageIDs(ctx context.Context, databaseID string) ([]string, error) {
	var ids []string
	err := c.queryPages(ctx, databaseID, func(p pageObject) {
		ids = append(ids, p.ID)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// queryPages follows the database query cursor until has_more is false.
func (c *Client) queryPages(ctx context.Context, databaseID string, visit func(pageObject)) error {
	cursor := ""
	for {
		body := map[string]any{"page_size": queryPageSize}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		if err := c.doJSON(ctx, http.MethodPost, "/databases/"+databaseID+"/query", body, &resp); err != nil {
			return err
		}

		for _, p := range resp.Results {
			visit(p)
		}
		if !resp.HasMore {
			return nil
		}
		cursor = resp.NextCursor
	}
}

// CreatePage inserts a new activity row and returns the page ID Notion
// assigned to it.
func (c *Client) CreatePage(ctx context.Context, databaseID string, f Fields) (string, error) {
	body := map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": propertiesFromFields(f),
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/pages", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdatePage patches the full rendered field set onto an existing row.
func (c *Client) UpdatePage(ctx context.Context, pageID string, f Fields) error {
	body := map[string]any{"properties": propertiesFromFields(f)}
	return c.doJSON(ctx, http.MethodPatch, "/pages/"+pageID, body, nil)
}

// ArchivePage marks a row as archived, removing it from database queries.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	body := map[string]any{"archived": true}
	return c.doJSON(ctx, http.MethodPatch, "/pages/"+pageID, body, nil)
}

// CreateLeaderboardRow inserts one athlete row into the leaderboard database.
func (c *Client) CreateLeaderboardRow(ctx context.Context, databaseID, athlete string, miles float64) error {
	body := map[string]any{
		"parent": map[string]any{"database_id": databaseID},
		"properties": map[string]property{
			propAthlete: {Title: []richText{{Text: &textContent{Content: athlete}}}},
			"Miles Ran": {RichText: []richText{{Text: &textContent{Content: formatMiles(miles)}}}},
		},
	}
	return c.doJSON(ctx, http.MethodPost, "/pages", body, nil)
}

// CreateLeaderboardTotals inserts the summary row at the bottom of the
// leaderboard.
func (c *Client) CreateLeaderboardTotals(ctx context.Context, databaseID string, totalMiles float64) error {
	body := map[string]any{
		"parent": map[string]any{"database_id": databaseID},
		"properties": map[string]property{
			propAthlete:         {Title: []richText{{Text: &textContent{Content: "Totals"}}}},
			"Miles Ran (Total)": {RichText: []richText{{Text: &textContent{Content: formatMiles(totalMiles)}}}},
		},
	}
	return c.doJSON(ctx, http.MethodPost, "/pages", body, nil)
}

// doJSON performs one API call with rate-limit suspension and bounded
// transient retry. Client errors other than 429 fail immediately.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; {
		retryAfter, err := c.do(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return err
		}

		if retryAfter > 0 {
			c.logger.Warn().Str("path", path).Dur("retry_after", retryAfter).
				Msg("notion rate limit hit, waiting")
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return err
			}
			continue
		}

		lastErr = err
		c.logger.Warn().Str("path", path).Int("attempt", attempt).
			Int("max_retries", c.maxRetries).Err(err).Msg("notion request failed")
		if attempt == c.maxRetries {
			break
		}
		if err := sleepCtx(ctx, baseBackoff<<(attempt-1)); err != nil {
			return err
		}
		attempt++
	}

	return fmt.Errorf("%w: %s %s failed after %d attempts: %s",
		ErrUnavailable, method, path, c.maxRetries, lastErr)
}

// permanentError marks responses that retrying cannot fix.
type permanentError struct {
	status  int
	message string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("notion: status %d: %s", e.status, e.message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (time.Duration, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retryAfterDelay(resp), fmt.Errorf("rate limited")
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return 0, &permanentError{status: resp.StatusCode, message: apiMessage(resp)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return 0, nil
}

// apiMessage extracts the error message Notion returns alongside 4xx codes.
func apiMessage(resp *http.Response) string {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return resp.Status
}

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

// propertiesFromFields renders Fields into the Notion property payload.
func propertiesFromFields(f Fields) map[string]property {
	distance := f.DistanceMiles
	elevation := f.ElevationFeet
	return map[string]property{
		propAthlete:     {Title: []richText{{Text: &textContent{Content: f.Athlete}}}},
		propActivity:    {RichText: []richText{{Text: &textContent{Content: f.ActivityName}}}},
		propStravaID:    {RichText: []richText{{Text: &textContent{Content: f.StravaID}}}},
		propDate:        {Date: &dateValue{Start: f.Date}},
		propDistance:    {Number: &distance},
		propMovingTime:  {RichText: []richText{{Text: &textContent{Content: f.MovingTime}}}},
		propElapsedTime: {RichText: []richText{{Text: &textContent{Content: f.ElapsedTime}}}},
		propElevation:   {Number: &elevation},
	}
}

// recordFromPage parses a queried page back into a Record. Pages without a
// Strava ID property are not sync-managed rows.
func recordFromPage(p pageObject) (Record, bool) {
	externalID := strings.TrimSpace(plainText(p.Properties[propStravaID].RichText))
	if externalID == "" {
		return Record{}, false
	}

	f := Fields{
		Athlete:      plainText(p.Properties[propAthlete].Title),
		ActivityName: plainText(p.Properties[propActivity].RichText),
		StravaID:     externalID,
		MovingTime:   plainText(p.Properties[propMovingTime].RichText),
		ElapsedTime:  plainText(p.Properties[propElapsedTime].RichText),
	}
	if n := p.Properties[propDistance].Number; n != nil {
		f.DistanceMiles = *n
	}
	if n := p.Properties[propElevation].Number; n != nil {
		f.ElevationFeet = *n
	}
	if d := p.Properties[propDate].Date; d != nil {
		f.Date = d.Start
	}

	return Record{PageID: p.ID, ExternalID: externalID, Fields: f}, true
}

// plainText flattens a rich text array, preferring the read-side plain_text.
func plainText(rts []richText) string {
	var b strings.Builder
	for _, rt := range rts {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}
