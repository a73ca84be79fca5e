package netmon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	readings []bool
}

func (s *recordingSink) SetOnlineStatus(online bool) {
	s.mu.Lock()
	s.readings = append(s.readings, online)
	s.mu.Unlock()
}

func (s *recordingSink) all() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.readings...)
}

func TestMonitorPushesInitialReading(t *testing.T) {
	sink := &recordingSink{}
	probe := func(context.Context) bool { return true }
	m := New(probe, sink, time.Hour, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	assert.Equal(t, []bool{true}, sink.all())
}

func TestMonitorPushesOnlyChanges(t *testing.T) {
	sink := &recordingSink{}
	var mu sync.Mutex
	online := false
	probe := func(context.Context) bool {
		mu.Lock()
		defer mu.Unlock()
		return online
	}
	m := New(probe, sink, 5*time.Millisecond, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	// steady-state repeats are suppressed
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, []bool{false}, sink.all())

	mu.Lock()
	online = true
	mu.Unlock()

	require.Eventually(t, func() bool {
		got := sink.all()
		return len(got) == 2 && got[1]
	}, time.Second, 5*time.Millisecond)
}

func TestMonitorStartIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	probe := func(context.Context) bool { return true }
	m := New(probe, sink, time.Hour, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	m.Start(ctx)

	assert.Equal(t, []bool{true}, sink.all())
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := HTTPProbe(srv.URL+"/health", srv.Client())
	assert.True(t, probe(context.Background()))

	srv.Close()
	assert.False(t, probe(context.Background()))
}
