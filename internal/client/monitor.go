package client

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Pinger is satisfied by *Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor tracks connectivity by polling the health route. The game UI reads
// Connected before offering a new round.
type Monitor struct {
	pinger    Pinger
	interval  time.Duration
	connected atomic.Bool
	onChange  func(bool)
}

func NewMonitor(pinger Pinger, interval time.Duration, onChange func(bool)) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{pinger: pinger, interval: interval, onChange: onChange}
}

func (m *Monitor) Connected() bool {
	return m.connected.Load()
}

// Check pings once and returns the new connectivity state.
func (m *Monitor) Check(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	up := m.pinger.Ping(pingCtx) == nil
	if prev := m.connected.Swap(up); prev != up {
		log.WithField("connected", up).Info("connectivity changed")
		if m.onChange != nil {
			m.onChange(up)
		}
	}
	return up
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
