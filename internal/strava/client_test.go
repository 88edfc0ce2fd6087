package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exaphy/stravasync/internal/config"
)

func testClient(t *testing.T, srv *httptest.Server, activityType string) *Client {
	t.Helper()
	cfg := &config.Config{
		StravaAccessToken: "test-token",
		StravaClubID:      "42",
		ActivityType:      activityType,
		MaxRetries:        3,
	}
	c := NewClient(cfg, zerolog.Nop())
	c.baseURL = srv.URL
	return c
}

func activityJSON(id int, name, typ, start string, distance float64) string {
	return fmt.Sprintf(`{
		"id": %d,
		"name": %q,
		"type": %q,
		"athlete": {"id": 7, "firstname": "Ada", "lastname": "Lovelace"},
		"start_date_local": %q,
		"distance": %f,
		"moving_time": 1800,
		"elapsed_time": 2000,
		"total_elevation_gain": 55.0
	}`, id, name, typ, start, distance)
}

func mustWindow(t *testing.T, date string) Window {
	t.Helper()
	w, err := NewWindow(date, time.UTC)
	require.NoError(t, err)
	return w
}

func TestFetchWindowPaginates(t *testing.T) {
	var pagesServed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "/clubs/42/activities", r.URL.Path)

		page := r.URL.Query().Get("page")
		pagesServed = append(pagesServed, page)
		switch page {
		case "1":
			fmt.Fprintf(w, "[%s,%s]",
				activityJSON(1, "Morning Run", "Run", "2024-01-15T08:30:00Z", 5000),
				activityJSON(2, "Lunch Ride", "Ride", "2024-01-15T12:00:00Z", 20000))
		case "2":
			fmt.Fprintf(w, "[%s]",
				activityJSON(3, "Evening Run", "Run", "2024-01-15T19:00:00Z", 8000))
		default:
			fmt.Fprint(w, "[]")
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, "Run")
	activities, err := c.FetchWindow(context.Background(), mustWindow(t, "2024-01-15"))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, pagesServed)
	require.Len(t, activities, 2)
	assert.Equal(t, "1", activities[0].ID)
	assert.Equal(t, "3", activities[1].ID)
	assert.Equal(t, "Ada Lovelace", activities[0].Athlete.DisplayName())
	assert.Equal(t, 5000.0, activities[0].DistanceMeters)
}

func TestFetchWindowFiltersToWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, "[]")
			return
		}
		// One before, one exactly at window start (included), one inside,
		// one exactly at window end (excluded), one after.
		fmt.Fprintf(w, "[%s,%s,%s,%s,%s]",
			activityJSON(1, "too early", "Run", "2024-01-14T23:59:59Z", 1000),
			activityJSON(2, "at start", "Run", "2024-01-15T00:00:00Z", 1000),
			activityJSON(3, "inside", "Run", "2024-01-15T12:00:00Z", 1000),
			activityJSON(4, "at end", "Run", "2024-01-16T00:00:00Z", 1000),
			activityJSON(5, "too late", "Run", "2024-01-16T08:00:00Z", 1000))
	}))
	defer srv.Close()

	c := testClient(t, srv, "")
	activities, err := c.FetchWindow(context.Background(), mustWindow(t, "2024-01-15"))
	require.NoError(t, err)

	require.Len(t, activities, 2)
	assert.Equal(t, "2", activities[0].ID)
	assert.Equal(t, "3", activities[1].ID)
}

func TestFetchWindowResumesAfterRateLimit(t *testing.T) {
	var pageOneHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, "[]")
			return
		}
		pageOneHits++
		if pageOneHits == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, "[%s]", activityJSON(1, "Morning Run", "Run", "2024-01-15T08:30:00Z", 5000))
	}))
	defer srv.Close()

	c := testClient(t, srv, "Run")
	activities, err := c.FetchWindow(context.Background(), mustWindow(t, "2024-01-15"))
	require.NoError(t, err)

	// Same page was retried after the wait, nothing lost or duplicated.
	assert.Equal(t, 2, pageOneHits)
	require.Len(t, activities, 1)
	assert.Equal(t, "1", activities[0].ID)
}

func TestFetchWindowRetriesTransientFaults(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, "[]")
			return
		}
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "[%s]", activityJSON(1, "Morning Run", "Run", "2024-01-15T08:30:00Z", 5000))
	}))
	defer srv.Close()

	c := testClient(t, srv, "Run")
	activities, err := c.FetchWindow(context.Background(), mustWindow(t, "2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
	assert.Len(t, activities, 1)
}

func TestFetchWindowUnavailableAfterRetries(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv, "Run")
	c.maxRetries = 2

	_, err := c.FetchWindow(context.Background(), mustWindow(t, "2024-01-15"))
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, hits)
}

func TestFetchWindowFailsFastOnAuthError(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(t, srv, "Run")
	_, err := c.FetchWindow(context.Background(), mustWindow(t, "2024-01-15"))

	// A bad token is not source unavailability and is never retried.
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, 1, hits)
}

func TestFetchWindowCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(t, srv, "Run")
	_, err := c.FetchWindow(ctx, mustWindow(t, "2024-01-15"))
	require.ErrorIs(t, err, context.Canceled)
}
