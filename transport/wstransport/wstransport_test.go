package wstransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digital-defiance/eecp/transport"
)

func newTestServer(t *testing.T, handle func(conn *Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := &Upgrader{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r)
		require.NoError(t, err)
		handle(conn)
	})
	srv := httptest.NewServer(mux)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return srv, wsURL
}

func TestConn_SendReceiveRoundTrip(t *testing.T) {
	done := make(chan struct{})
	srv, wsURL := newTestServer(t, func(conn *Conn) {
		defer close(done)
		defer conn.Close()
		env, err := conn.Receive(context.Background())
		require.NoError(t, err)
		require.Equal(t, transport.TypePing, env.Type)
		pong, err := transport.NewEnvelope(transport.TypePong, transport.PingPongPayload{Timestamp: time.Now()}, time.Now())
		require.NoError(t, err)
		require.NoError(t, conn.Send(context.Background(), pong))
	})
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL, 5*time.Second, 5*time.Second, 5*time.Second)
	require.NoError(t, err)
	defer client.Close()

	ping, err := transport.NewEnvelope(transport.TypePing, transport.PingPongPayload{Timestamp: time.Now()}, time.Now())
	require.NoError(t, err)
	require.NoError(t, client.Send(context.Background(), ping))

	reply, err := client.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, transport.TypePong, reply.Type)

	<-done
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	srv, wsURL := newTestServer(t, func(conn *Conn) {
		_, _ = conn.Receive(context.Background())
		conn.Close()
	})
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL, 5*time.Second, 5*time.Second, 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestConn_SendAfterCloseFails(t *testing.T) {
	srv, wsURL := newTestServer(t, func(conn *Conn) {
		_, _ = conn.Receive(context.Background())
	})
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL, 5*time.Second, 5*time.Second, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	env, err := transport.NewEnvelope(transport.TypePing, transport.PingPongPayload{Timestamp: time.Now()}, time.Now())
	require.NoError(t, err)
	err = client.Send(context.Background(), env)
	require.ErrorIs(t, err, transport.ErrClosed)
}

func TestDial_FailsAgainstNonWebSocketServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, err := Dial(context.Background(), wsURL, 2*time.Second, 2*time.Second, 2*time.Second)
	require.Error(t, err)
}
