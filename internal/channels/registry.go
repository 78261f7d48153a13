package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/gateway"
	"github.com/openclaw/gateway/internal/logging"
)

// Registry holds the configured channel adapters and satisfies
// gateway.ChannelRegistry so the gateway can list and probe them without
// depending on any concrete adapter package.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds or replaces the adapter under its own ID.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ID()] = a
}

// Get returns the adapter registered under id.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "channel not registered: "+id)
	}
	return a, nil
}

// List reports every registered adapter's last-probed status.
func (r *Registry) List() []gateway.ChannelInfo {
	r.mu.RLock()
	adapters := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.mu.RUnlock()

	out := make([]gateway.ChannelInfo, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, toChannelInfo(a, a.Probe(context.Background())))
	}
	return out
}

// Probe re-queries one adapter's connection state by id.
func (r *Registry) Probe(ctx context.Context, id string) (gateway.ChannelInfo, error) {
	a, err := r.Get(id)
	if err != nil {
		return gateway.ChannelInfo{}, err
	}
	return toChannelInfo(a, a.Probe(ctx)), nil
}

func toChannelInfo(a Adapter, probe ProbeResult) gateway.ChannelInfo {
	return gateway.ChannelInfo{
		ID:          a.ID(),
		Label:       a.Label(),
		Connected:   probe.Connected,
		AccountID:   probe.AccountID,
		DisplayName: probe.DisplayName,
		Error:       probe.Error,
	}
}

// StartAll starts every registered adapter, stopping those already started
// and returning the first error encountered.
func (r *Registry) StartAll(ctx context.Context) error {
	log := logging.For("channels")
	r.mu.RLock()
	adapters := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.mu.RUnlock()

	started := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		if err := a.Start(ctx); err != nil {
			log.Warn("channel failed to start", "id", a.ID(), "error", err)
			for _, s := range started {
				_ = s.Stop(ctx)
			}
			return fmt.Errorf("channels: start %q: %w", a.ID(), err)
		}
		started = append(started, a)
		log.Info("channel started", "id", a.ID())
	}
	return nil
}

// StopAll stops every registered adapter, continuing past individual errors.
func (r *Registry) StopAll(ctx context.Context) {
	log := logging.For("channels")
	r.mu.RLock()
	adapters := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.mu.RUnlock()

	for _, a := range adapters {
		if err := a.Stop(ctx); err != nil {
			log.Warn("channel failed to stop cleanly", "id", a.ID(), "error", err)
		}
	}
}
