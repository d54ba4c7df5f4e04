package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/matcher"
	"github.com/bean-lens/beanlens/internal/metrics"
	"github.com/bean-lens/beanlens/internal/normalizer"
	"github.com/bean-lens/beanlens/internal/queue"
	"github.com/bean-lens/beanlens/internal/storage"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type memorySink struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (s *memorySink) Append(_ context.Context, event queue.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestHandler(t *testing.T, sink queue.Sink, token string) (*Handler, *metrics.Recorder) {
	t.Helper()
	catalog, err := dictionary.OpenCatalog(dictionary.Embedded())
	require.NoError(t, err)

	rec := metrics.New()
	h := New(Options{
		Sink:           sink,
		Store:          storage.New(10),
		Token:          token,
		Recorder:       rec,
		Service:        normalizer.NewService(catalog, matcher.DefaultConfig(), normalizer.DefaultConfig(), nil, rec),
		DefaultVersion: dictionary.DefaultVersion,
	})
	h.now = func() time.Time { return fixedNow }
	return h, rec
}

func do(h *Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

const validEvent = `{"domain":"process","raw":"Mystery Process","reason":"no_dictionary_match","confidence":0}`

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, &memorySink{}, "")
	w := do(h, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestHandleUnknownQueue(t *testing.T) {
	sink := &memorySink{}
	h, _ := newTestHandler(t, sink, "")

	w := do(h, http.MethodPost, "/unknown-queue", validEvent, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"id":1}`, w.Body.String())

	require.Len(t, sink.events, 1)
	got := sink.events[0]
	assert.Equal(t, dictionary.Process, got.Domain)
	assert.Equal(t, "Mystery Process", got.Raw)
	assert.Equal(t, fixedNow, got.Timestamp, "missing timestamp defaults to receipt time")
	assert.Equal(t, DefaultReceivedSource, got.Source)
	assert.Equal(t, 1, got.Count)

	w = do(h, http.MethodPost, "/unknown-queue", `{"ts":"2026-03-01T08:00:00Z","domain":"flavor_note","raw":"Jasmin","reason":"low_confidence","method":"fuzzy","source":"api"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":2}`, w.Body.String())
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), sink.events[1].Timestamp.UTC())
	assert.Equal(t, "api", sink.events[1].Source)
	assert.Equal(t, "fuzzy", sink.events[1].MatchKind)
}

func TestHandleUnknownQueueRejects(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		body     string
		wantCode int
		wantBody string
	}{
		{name: "wrong method", method: http.MethodGet, wantCode: http.StatusMethodNotAllowed},
		{name: "invalid json", method: http.MethodPost, body: `{"domain":`, wantCode: http.StatusBadRequest, wantBody: "Invalid JSON"},
		{name: "missing raw", method: http.MethodPost, body: `{"domain":"process","reason":"no_dictionary_match"}`, wantCode: http.StatusUnprocessableEntity, wantBody: "raw is required"},
		{name: "bad reason", method: http.MethodPost, body: `{"domain":"process","raw":"x","reason":"maybe"}`, wantCode: http.StatusUnprocessableEntity, wantBody: "reason must be"},
		{name: "confidence out of range", method: http.MethodPost, body: `{"domain":"process","raw":"x","reason":"low_confidence","confidence":1.5}`, wantCode: http.StatusUnprocessableEntity, wantBody: "confidence must be between 0 and 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			h, _ := newTestHandler(t, sink, "")

			w := do(h, tt.method, "/unknown-queue", tt.body, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.Empty(t, sink.events)
			assert.Zero(t, h.store.Len())
		})
	}
}

func TestHandleUnknownQueueAuth(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
	}{
		{name: "no token", wantCode: http.StatusUnauthorized},
		{name: "wrong token", headers: map[string]string{"X-Webhook-Token": "nope"}, wantCode: http.StatusUnauthorized},
		{name: "webhook header", headers: map[string]string{"X-Webhook-Token": "secret"}, wantCode: http.StatusOK},
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer secret"}, wantCode: http.StatusOK},
		{name: "basic is not bearer", headers: map[string]string{"Authorization": "Basic secret"}, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			h, _ := newTestHandler(t, sink, "secret")

			w := do(h, http.MethodPost, "/unknown-queue", validEvent, tt.headers)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Len(t, sink.events, 1)
			} else {
				assert.Empty(t, sink.events)
			}
		})
	}
}

func TestHandleUnknownQueueSinkFailure(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	h, _ := newTestHandler(t, sink, "")

	w := do(h, http.MethodPost, "/unknown-queue", validEvent, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, h.store.Len(), "failed events are not listed as received")
}

func TestHandleRecent(t *testing.T) {
	h, _ := newTestHandler(t, &memorySink{}, "")
	for _, raw := range []string{"first", "second", "third"} {
		body := `{"domain":"process","raw":"` + raw + `","reason":"no_dictionary_match"}`
		require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/unknown-queue", body, nil).Code)
	}

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantRaws []string
	}{
		{name: "default limit", wantCode: http.StatusOK, wantRaws: []string{"third", "second", "first"}},
		{name: "limit one", query: "?limit=1", wantCode: http.StatusOK, wantRaws: []string{"third"}},
		{name: "limit max", query: "?limit=500", wantCode: http.StatusOK, wantRaws: []string{"third", "second", "first"}},
		{name: "limit zero", query: "?limit=0", wantCode: http.StatusBadRequest},
		{name: "limit too large", query: "?limit=501", wantCode: http.StatusBadRequest},
		{name: "limit not a number", query: "?limit=ten", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodGet, "/unknown-queue/recent"+tt.query, "", nil)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var entries []map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
			var raws []string
			for _, e := range entries {
				raws = append(raws, e["raw"].(string))
				assert.Contains(t, e, "id")
				assert.Contains(t, e, "received_at")
			}
			assert.Equal(t, tt.wantRaws, raws)
		})
	}
}

func TestHandleRecentRequiresToken(t *testing.T) {
	h, _ := newTestHandler(t, &memorySink{}, "secret")

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/unknown-queue/recent", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/unknown-queue/recent", "", map[string]string{"X-Webhook-Token": "secret"}).Code)
}

func TestHandleEventDetail(t *testing.T) {
	h, _ := newTestHandler(t, &memorySink{}, "")
	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/unknown-queue", validEvent, nil).Code)

	w := do(h, http.MethodGet, "/unknown-queue/events/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "Mystery Process", entry["raw"])
	assert.EqualValues(t, 1, entry["id"])

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/unknown-queue/events/7", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/unknown-queue/events/abc", "", nil).Code)
}

func TestHandleNormalize(t *testing.T) {
	h, _ := newTestHandler(t, &memorySink{}, "")
	body := `{"process":"워시드","roast_level":"City","origin":{"country":"에티오피아","region":"Yirgacheffe"},"variety":["Geisha","Gesha"],"flavor_notes":["Jasmine","Mystery Note"]}`

	w := do(h, http.MethodPost, "/normalize", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got normalizer.NormalizedBeanInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "v1", got.DictionaryVersion)
	require.NotNil(t, got.Process)
	assert.Equal(t, "washed", got.Process.Key)
	require.NotNil(t, got.RoastLevel)
	assert.Equal(t, "medium", got.RoastLevel.Key)
	require.NotNil(t, got.Origin)
	require.NotNil(t, got.Origin.Country)
	assert.Equal(t, "ET", got.Origin.Country.Key)
	assert.Equal(t, "Yirgacheffe", got.Origin.Region)
	assert.Len(t, got.Varieties, 1)
	assert.Contains(t, got.Warnings, "flavor_note_partial_unmapped")
}

func TestHandleNormalizeErrors(t *testing.T) {
	h, _ := newTestHandler(t, &memorySink{}, "")

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/normalize?version=v9", `{"process":"Washed"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/normalize", `[`, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/normalize", "", nil).Code)

	w := do(h, http.MethodPost, "/normalize?version=v2", `{"process":"co-fermented"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"normalized_key":"infused"`)

	disabled := New(Options{})
	assert.Equal(t, http.StatusNotFound, do(disabled, http.MethodPost, "/normalize", `{}`, nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, &memorySink{}, "secret")
	do(h, http.MethodPost, "/unknown-queue", validEvent, map[string]string{"X-Webhook-Token": "secret"})
	do(h, http.MethodPost, "/unknown-queue", validEvent, nil)

	w := do(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `beanlens_receiver_events_total{status="accepted"} 1`)
	assert.Contains(t, w.Body.String(), `beanlens_receiver_events_total{status="unauthorized"} 1`)
}
