package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/queue"
)

func raw(name string) queue.Event {
	return queue.Event{Domain: dictionary.Process, Raw: name, Reason: queue.ReasonNoMatch, Count: 1}
}

func raws(entries []Received) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Raw)
	}
	return out
}

func TestRecentStore(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cap     int
		adds    []string
		limit   int
		want    []string
		wantLen int
	}{
		{name: "empty", cap: 3, limit: 10, want: []string{}, wantLen: 0},
		{name: "newest first", cap: 3, adds: []string{"a", "b"}, limit: 10, want: []string{"b", "a"}, wantLen: 2},
		{name: "limit", cap: 5, adds: []string{"a", "b", "c"}, limit: 2, want: []string{"c", "b"}, wantLen: 3},
		{name: "wraps", cap: 3, adds: []string{"a", "b", "c", "d", "e"}, limit: 0, want: []string{"e", "d", "c"}, wantLen: 3},
		{name: "zero capacity holds one", cap: 0, adds: []string{"a", "b"}, limit: 5, want: []string{"b"}, wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.cap)
			for _, name := range tt.adds {
				s.Add(raw(name), now)
			}
			assert.Equal(t, tt.want, raws(s.Recent(tt.limit)))
			assert.Equal(t, tt.wantLen, s.Len())
		})
	}
}

func TestRecentStoreIDs(t *testing.T) {
	s := New(2)
	now := time.Now()

	first := s.Add(raw("a"), now)
	second := s.Add(raw("b"), now)
	third := s.Add(raw("c"), now)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, int64(3), third.ID)

	_, ok := s.Get(1)
	assert.False(t, ok, "evicted")

	got, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, "b", got.Raw)

	got, ok = s.Get(3)
	require.True(t, ok)
	assert.Equal(t, "c", got.Raw)
	assert.Equal(t, now, got.ReceivedAt)

	_, ok = s.Get(4)
	assert.False(t, ok)
}

func TestRecentStoreConcurrent(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(raw("x"), time.Now())
			_ = s.Recent(10)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	recent := s.Recent(0)
	require.Len(t, recent, 50)
	assert.Equal(t, int64(100), recent[0].ID)
	assert.Equal(t, int64(51), recent[49].ID)
}
