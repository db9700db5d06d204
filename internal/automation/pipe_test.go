package automation

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/coordinator"
	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/optimise"
)

func newTestPipeServer(t *testing.T) *PipeServer {
	t.Helper()
	store := newTestStore(t)
	coord := coordinator.New(optimise.NewRegistry(), 2, corelog.New("automation-pipe-test"))
	coord.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = coord.Stop(ctx)
	})
	d := &Dispatcher{Settings: store, Coordinator: coord, Resolver: NewResolver(store)}

	name := "clop-automation-test-" + strings.NewReplacer("/", "-", " ", "-").Replace(t.Name())
	srv := NewPipeServer(name, d, corelog.New("automation-pipe-test"))
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func dialPipe(t *testing.T, srv *PipeServer) net.Conn {
	t.Helper()
	addr := srv.listener.Addr()
	conn, err := net.DialTimeout(addr.Network(), addr.String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPipe_RespondsToFramedPingEnvelope(t *testing.T) {
	srv := newTestPipeServer(t)
	conn := dialPipe(t, srv)

	require.NoError(t, json.NewEncoder(conn).Encode(Envelope{Intent: "ping"}))

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.Equal(t, "ok", resp.Status)
}

func TestPipe_HandlesMultipleSequentialMessagesOnOneConnection(t *testing.T) {
	srv := newTestPipeServer(t)
	conn := dialPipe(t, srv)

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	require.NoError(t, encoder.Encode(Envelope{Intent: "pause"}))
	var first Response
	require.NoError(t, decoder.Decode(&first))
	require.Equal(t, "ok", first.Status)

	require.NoError(t, encoder.Encode(Envelope{Intent: "status"}))
	var second Response
	require.NoError(t, decoder.Decode(&second))
	data, ok := second.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, data["paused"])
}

func TestPipe_UnknownIntentReturnsErrorStatusWithoutClosingConnection(t *testing.T) {
	srv := newTestPipeServer(t)
	conn := dialPipe(t, srv)

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	require.NoError(t, encoder.Encode(Envelope{Intent: "bogus"}))
	var first Response
	require.NoError(t, decoder.Decode(&first))
	require.Equal(t, "unknown_intent", first.Status)

	require.NoError(t, encoder.Encode(Envelope{Intent: "ping"}))
	var second Response
	require.NoError(t, decoder.Decode(&second))
	require.Equal(t, "ok", second.Status)
}

func TestPipe_ClosesConnectionOnMalformedFrame(t *testing.T) {
	srv := newTestPipeServer(t)
	conn := dialPipe(t, srv)

	_, err := conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	var resp Response
	err = json.NewDecoder(conn).Decode(&resp)
	require.Error(t, err)
}
