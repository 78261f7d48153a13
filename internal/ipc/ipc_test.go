package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tempSocketAddress(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("unix://%s/ipc-test-%d.sock", t.TempDir(), time.Now().UnixNano())
}

// serve runs a trivial echo-style server on one end of a net.Pipe-like unix
// socket pair: it reads a request envelope and replies with a response
// envelope echoing the params back as the result.
func serveOnce(t *testing.T, conn net.Conn) {
	t.Helper()
	env, err := readEnvelope(conn)
	require.NoError(t, err)
	require.Equal(t, KindRequest, env.Kind)
	reply, err := NewResponse(env.ID, env.Request.Params, nil)
	require.NoError(t, err)
	require.NoError(t, writeEnvelope(conn, reply))
}

func TestRequestRoundTrip(t *testing.T) {
	addr := tempSocketAddress(t)
	ln, err := net.Listen(mustParseNetwork(t, addr))
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serveOnce(t, conn)
	}()

	client, err := Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer client.Close()

	reply, err := client.Request(context.Background(), "ping", map[string]string{"hello": "world"})
	require.NoError(t, err)
	require.Equal(t, KindResponse, reply.Kind)
	require.True(t, reply.Response.Success)

	var got map[string]string
	require.NoError(t, json.Unmarshal(reply.Response.Result, &got))
	require.Equal(t, "world", got["hello"])
}

func TestRequestTimeout(t *testing.T) {
	addr := tempSocketAddress(t)
	ln, err := net.Listen(mustParseNetwork(t, addr))
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Never replies — forces the client to hit its deadline.
		time.Sleep(2 * time.Second)
	}()

	client, err := Dial(context.Background(), addr, 50*time.Millisecond)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Request(context.Background(), "ping", nil)
	require.Error(t, err)
}

func TestParseAddressRejectsUnknownScheme(t *testing.T) {
	_, _, err := ParseAddress("ftp://nope")
	require.Error(t, err)
}

func TestDefaultAddressIsWellFormed(t *testing.T) {
	network, _, err := ParseAddress(DefaultAddress())
	require.NoError(t, err)
	require.NotEmpty(t, network)
}

func TestReconnectingClientServesRequest(t *testing.T) {
	addr := tempSocketAddress(t)
	ln, err := net.Listen(mustParseNetwork(t, addr))
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serveOnce(t, conn)
	}()

	rc := NewReconnecting(addr, time.Second, 3, 10*time.Millisecond)
	defer rc.Close()

	reply, err := rc.Request(context.Background(), "ping", map[string]string{"a": "b"})
	require.NoError(t, err)
	require.True(t, reply.Response.Success)
}

func mustParseNetwork(t *testing.T, addr string) (string, string) {
	t.Helper()
	network, endpoint, err := ParseAddress(addr)
	require.NoError(t, err)
	return network, endpoint
}
