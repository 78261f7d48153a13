package ipc

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openclaw/gateway/internal/apperr"
)

// maxFrameBytes bounds a single envelope so a misbehaving peer cannot force
// an unbounded allocation.
const maxFrameBytes = 16 << 20

// Client is a synchronous request/reply connection: one request in flight at
// a time, each bounded by Timeout.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// Dial connects to address (an "unix://path" or "tcp://host:port" URL, see
// ParseAddress) and wraps the connection for framed request/reply use.
func Dial(ctx context.Context, address string, timeout time.Duration) (*Client, error) {
	network, endpoint, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, endpoint)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, fmt.Errorf("ipc: dial %s: %w", address, err))
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), timeout: timeout}, nil
}

// Request writes method/params as a request envelope and blocks for the
// matching response, bounded by the client's configured timeout.
func (c *Client) Request(ctx context.Context, method string, params interface{}) (Envelope, error) {
	env, err := NewRequest(method, params)
	if err != nil {
		return Envelope{}, apperr.Wrap(apperr.Validation, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return Envelope{}, apperr.Wrap(apperr.Network, err)
	}

	if err := writeEnvelope(c.conn, env); err != nil {
		return Envelope{}, classifyIOError(err)
	}
	reply, err := readEnvelope(c.r)
	if err != nil {
		return Envelope{}, classifyIOError(err)
	}
	if reply.ID != env.ID {
		return Envelope{}, apperr.New(apperr.Upstream, "ipc: response id mismatch")
	}
	return reply, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// asyncResult is delivered on the channel returned by RequestAsync.
type asyncResult struct {
	Envelope Envelope
	Err      error
}

// RequestAsync wraps Request in a blocking-task goroutine, returning
// immediately with a channel that receives exactly one result.
func (c *Client) RequestAsync(ctx context.Context, method string, params interface{}) <-chan asyncResult {
	out := make(chan asyncResult, 1)
	go func() {
		env, err := c.Request(ctx, method, params)
		out <- asyncResult{Envelope: env, Err: err}
	}()
	return out
}

// classifyIOError maps transport failures to the Timeout/Network kinds the
// reconnecting client inspects to decide whether to reconnect.
func classifyIOError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.Timeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return apperr.Wrap(apperr.Network, fmt.Errorf("ipc: peer closed: %w", err))
	}
	return apperr.Wrap(apperr.Network, err)
}

func writeEnvelope(w io.Writer, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if len(payload) > maxFrameBytes {
		return fmt.Errorf("ipc: frame too large: %d bytes", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readEnvelope(r io.Reader) (Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameBytes {
		return Envelope{}, fmt.Errorf("ipc: frame too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// ParseAddress decomposes an "unix:///path/to.sock" or "tcp://host:port" URL
// into the (network, endpoint) pair net.Dial expects.
func ParseAddress(address string) (network, endpoint string, err error) {
	switch {
	case strings.HasPrefix(address, "unix://"):
		return "unix", strings.TrimPrefix(address, "unix://"), nil
	case strings.HasPrefix(address, "tcp://"):
		return "tcp", strings.TrimPrefix(address, "tcp://"), nil
	default:
		return "", "", fmt.Errorf("ipc: unsupported address scheme: %q", address)
	}
}

// DefaultAddress returns the platform default: a Unix-domain socket path
// under the temp directory on Unix, a loopback TCP socket on Windows (see
// address_windows.go).
func DefaultAddress() string {
	return defaultAddress()
}

func defaultUnixAddress() string {
	return "unix://" + os.TempDir() + "/openclaw-gateway.ipc"
}
