// Package netmon polls for connectivity and pushes status changes into the
// state container. The probe is injectable; the default probes the remote
// API health endpoint with a short timeout.
package netmon

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Probe reports whether the remote authority is currently reachable.
type Probe func(ctx context.Context) bool

// StatusSink receives connectivity readings. The state container satisfies it.
type StatusSink interface {
	SetOnlineStatus(online bool)
}

type Monitor struct {
	probe    Probe
	sink     StatusSink
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	started bool
	known   bool
	online  bool
}

func New(probe Probe, sink StatusSink, interval, probeTimeout time.Duration, log zerolog.Logger) *Monitor {
	return &Monitor{
		probe:    probe,
		sink:     sink,
		interval: interval,
		timeout:  probeTimeout,
		log:      log,
	}
}

// HTTPProbe returns a probe that issues a HEAD request against the given
// health URL. Any response counts as reachable; transport errors do not.
func HTTPProbe(url string, client *http.Client) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// Start takes an initial reading immediately, then polls until the context
// is cancelled. The sink only hears about the initial reading and subsequent
// changes, not steady-state repeats.
func (m *Monitor) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true

	m.check(ctx)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	online := m.probe(probeCtx)
	cancel()

	if m.known && online == m.online {
		return
	}
	m.known = true
	m.online = online
	m.log.Debug().Bool("online", online).Msg("connectivity reading changed")
	m.sink.SetOnlineStatus(online)
}
