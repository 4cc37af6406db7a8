package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestGoogleSource(t *testing.T, handler http.Handler, retries int) *GoogleSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	src, err := NewGoogleSource(context.Background(), GoogleConfig{
		Location:   taipei,
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	}, nil, nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	src.sleep = func(context.Context, time.Duration) error { return nil }
	return src
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestGoogleSourceListEventsPaginates(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/calendars/primary/events"), r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
		atomic.AddInt32(&calls, 1)

		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"nextPageToken": "page-2",
				"items": []map[string]any{
					{
						"id":      "evt-1",
						"summary": "ReservationCode: ABC123 - Reservation: Lin (2 guests)",
						"start":   map[string]any{"dateTime": "2024-05-01T10:00:00+08:00"},
						"end":     map[string]any{"dateTime": "2024-05-01T12:00:00+08:00"},
					},
					{
						"id":    "evt-broken",
						"start": map[string]any{"dateTime": "not-a-time"},
						"end":   map[string]any{"dateTime": "2024-05-01T12:00:00+08:00"},
					},
				},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{
					"id":      "evt-2",
					"summary": "Private event",
					"start":   map[string]any{"date": "2024-05-02"},
					"end":     map[string]any{"date": "2024-05-03"},
				},
			},
		})
	})

	src := newTestGoogleSource(t, handler, 0)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, src.loc)
	events, err := src.ListEvents(context.Background(), "primary", from, from.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, 10, events[0].Start.Hour())
	assert.False(t, events[0].AllDay)

	assert.Equal(t, "evt-2", events[1].ID)
	assert.True(t, events[1].AllDay)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, src.loc), events[1].Start)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, src.loc), events[1].End)
}

func TestGoogleSourceListRetriesServerErrors(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": map[string]any{"code": 503, "message": "backend down"},
		})
	})

	src := newTestGoogleSource(t, handler, 2)
	now := time.Now()
	_, err := src.ListEvents(context.Background(), "primary", now, now.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGoogleSourceInsertSendsReminders(t *testing.T) {
	var body map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          "created-1",
			"summary":     body["summary"],
			"description": body["description"],
			"start":       body["start"],
			"end":         body["end"],
		})
	})

	src := newTestGoogleSource(t, handler, 0)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, src.loc)
	ev, err := src.InsertEvent(context.Background(), "primary", EventPayload{
		Summary:     "ReservationCode: XYZ789 - Reservation: Chen (4 guests)",
		Description: "ReservationCode: XYZ789",
		Start:       start,
		End:         start.Add(2 * time.Hour),
		Reminders:   DefaultReminders(),
	})
	require.NoError(t, err)
	assert.Equal(t, "created-1", ev.ID)
	assert.True(t, ev.Start.Equal(start))

	reminders, ok := body["reminders"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, reminders["useDefault"])
	overrides, ok := reminders["overrides"].([]any)
	require.True(t, ok)
	require.Len(t, overrides, 2)
	first := overrides[0].(map[string]any)
	assert.Equal(t, "email", first["method"])
	assert.EqualValues(t, 1440, first["minutes"])
	assert.Equal(t, "Asia/Taipei", body["start"].(map[string]any)["timeZone"])
}

func TestGoogleSourceErrorMapping(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": "bad event"}})
		}
	})

	src := newTestGoogleSource(t, handler, 0)

	err := src.DeleteEvent(context.Background(), "primary", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	start := time.Now()
	_, err = src.InsertEvent(context.Background(), "primary", EventPayload{Start: start, End: start.Add(time.Hour)})
	var commitErr *CommitError
	require.True(t, errors.As(err, &commitErr))
	assert.Equal(t, "insert", commitErr.Op)
}

func TestMapErrorTreatsWritesAlike(t *testing.T) {
	rejected := errors.New("malformed response body")
	for _, op := range []string{"insert", "update", "delete"} {
		t.Run(op, func(t *testing.T) {
			var commitErr *CommitError
			require.True(t, errors.As(mapError(op, rejected), &commitErr))
			assert.Equal(t, op, commitErr.Op)

			err := mapError(op, context.DeadlineExceeded)
			assert.True(t, errors.Is(err, ErrServiceUnavailable))
			assert.False(t, errors.As(err, &commitErr))
		})
	}
	assert.True(t, errors.Is(mapError("list", rejected), ErrServiceUnavailable))
}

func TestGoogleSourceUnreachableIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src, err := NewGoogleSource(context.Background(), GoogleConfig{Timeout: time.Second}, nil, nil,
		option.WithEndpoint(url+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	now := time.Now()
	_, err = src.ListEvents(context.Background(), "primary", now, now.Add(time.Hour))
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
}

func TestNextDelayIsCapped(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, nextDelay(200*time.Millisecond, 0))
	assert.Equal(t, 800*time.Millisecond, nextDelay(200*time.Millisecond, 2))
	assert.Equal(t, maxRetryDelay, nextDelay(200*time.Millisecond, 10))
}
