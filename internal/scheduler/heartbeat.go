// Package scheduler drives the gateway's heartbeat cadence: a cron
// expression evaluated once a minute, broadcasting a heartbeat event to
// every subscribed websocket client each time it comes due.
package scheduler

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/openclaw/gateway/internal/broadcast"
	"github.com/openclaw/gateway/internal/logging"
)

// Heartbeat ticks a cron expression against the broadcaster.
type Heartbeat struct {
	expr        string
	broadcaster *broadcast.Broadcaster
	tick        time.Duration
}

// NewHeartbeat builds a Heartbeat that checks expr (standard 5-field cron
// syntax) once per tick, defaulting to one minute when tick is zero.
func NewHeartbeat(expr string, broadcaster *broadcast.Broadcaster, tick time.Duration) *Heartbeat {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Heartbeat{expr: expr, broadcaster: broadcaster, tick: tick}
}

// Run evaluates the cron expression every tick until ctx is cancelled,
// broadcasting EventHeartbeat whenever it comes due.
func (h *Heartbeat) Run(ctx context.Context) {
	log := logging.For("scheduler")
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	gron := gronx.New()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := gron.IsDue(h.expr, now)
			if err != nil {
				log.Warn("heartbeat: invalid cron expression", "expr", h.expr, "error", err)
				continue
			}
			if !due {
				continue
			}
			h.broadcaster.Broadcast(broadcast.Event{
				Type: broadcast.EventHeartbeat,
				Data: map[string]interface{}{"time": now},
			})
		}
	}
}
