package ipc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/openclaw/gateway/internal/apperr"
)

// Pool holds a fixed-size round-robin set of plain Clients for independent
// parallel requests that don't need reconnect semantics of their own.
type Pool struct {
	clients []*Client
	next    uint64
}

// NewPool dials size connections to address up front.
func NewPool(ctx context.Context, address string, size int, timeout time.Duration) (*Pool, error) {
	if size <= 0 {
		return nil, apperr.New(apperr.Validation, "ipc: pool size must be positive")
	}
	clients := make([]*Client, 0, size)
	for i := 0; i < size; i++ {
		c, err := Dial(ctx, address, timeout)
		if err != nil {
			for _, opened := range clients {
				opened.Close()
			}
			return nil, fmt.Errorf("ipc: pool dial %d/%d: %w", i+1, size, err)
		}
		clients = append(clients, c)
	}
	return &Pool{clients: clients}, nil
}

// Request dispatches to the next client in round-robin order.
func (p *Pool) Request(ctx context.Context, method string, params interface{}) (Envelope, error) {
	idx := atomic.AddUint64(&p.next, 1) % uint64(len(p.clients))
	return p.clients[idx].Request(ctx, method, params)
}

// Close closes every client in the pool, returning the first error seen.
func (p *Pool) Close() error {
	var first error
	for _, c := range p.clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
