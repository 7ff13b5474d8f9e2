package client

import (
	"context"
	"testing"
	"time"

	"emperror.dev/errors"
)

type flakyPinger struct{ up bool }

func (p *flakyPinger) Ping(context.Context) error {
	if p.up {
		return nil
	}
	return errors.New("offline")
}

func TestMonitorReportsChanges(t *testing.T) {
	pinger := &flakyPinger{}
	var changes []bool
	m := NewMonitor(pinger, time.Second, func(up bool) { changes = append(changes, up) })
	ctx := context.Background()

	if m.Check(ctx) || m.Connected() {
		t.Fatalf("expected offline")
	}
	pinger.up = true
	if !m.Check(ctx) || !m.Connected() {
		t.Fatalf("expected online")
	}
	m.Check(ctx)
	pinger.up = false
	m.Check(ctx)

	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Fatalf("unexpected transitions %v", changes)
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	m := NewMonitor(&flakyPinger{up: true}, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("monitor did not stop")
	}
	if !m.Connected() {
		t.Fatalf("expected connected")
	}
}
