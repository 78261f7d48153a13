package ipc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openclaw/gateway/internal/apperr"
)

// ReconnectingClient wraps a plain Client and reestablishes the connection
// on Timeout or Network (peer-close) failures, up to MaxAttempts with a
// fixed delay between attempts. A request that fails transiently is retried
// once against the freshly reconnected client.
type ReconnectingClient struct {
	mu          sync.Mutex
	address     string
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	client      *Client
}

// NewReconnecting builds a ReconnectingClient without dialing yet; the first
// Request call establishes the connection.
func NewReconnecting(address string, timeout time.Duration, maxAttempts int, retryDelay time.Duration) *ReconnectingClient {
	return &ReconnectingClient{address: address, timeout: timeout, maxAttempts: maxAttempts, retryDelay: retryDelay}
}

// Request performs a request, transparently reconnecting and retrying once
// on a transient (Timeout/Network) failure.
func (r *ReconnectingClient) Request(ctx context.Context, method string, params interface{}) (Envelope, error) {
	client, err := r.ensureConnected(ctx)
	if err != nil {
		return Envelope{}, err
	}

	env, err := client.Request(ctx, method, params)
	if err == nil || !isTransient(err) {
		return env, err
	}

	r.mu.Lock()
	r.client = nil
	r.mu.Unlock()

	client, err = r.ensureConnected(ctx)
	if err != nil {
		return Envelope{}, err
	}
	return client.Request(ctx, method, params)
}

// Close releases the underlying connection, if any.
func (r *ReconnectingClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *ReconnectingClient) ensureConnected(ctx context.Context) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		client, err := Dial(ctx, r.address, r.timeout)
		if err == nil {
			r.client = client
			return client, nil
		}
		lastErr = err
		if attempt < r.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}
	}
	return nil, apperr.Wrap(apperr.Network, fmt.Errorf("ipc: failed to connect after %d attempts: %w", r.maxAttempts, lastErr))
}

func isTransient(err error) bool {
	kind := apperr.KindOf(err)
	return kind == apperr.Timeout || kind == apperr.Network
}
