package automation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/coordinator"
	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/request"
)

type stubOptimiser struct {
	itemType corepath.ItemType
	run      func(req request.Request) (request.Result, error)
}

func (s stubOptimiser) ItemType() corepath.ItemType { return s.itemType }

func (s stubOptimiser) Optimise(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
	return s.run(req)
}

func newTestDispatcher(t *testing.T, reg *optimise.Registry) *Dispatcher {
	t.Helper()
	store := newTestStore(t)
	coord := coordinator.New(reg, 2, corelog.New("automation-test"))
	coord.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = coord.Stop(ctx)
	})
	return &Dispatcher{Settings: store, Coordinator: coord, Resolver: NewResolver(store)}
}

func TestHandle_PingIsUnauthenticatedAndAlwaysOk(t *testing.T) {
	d := newTestDispatcher(t, optimise.NewRegistry())
	resp := d.Handle(context.Background(), Envelope{Intent: "ping"})
	require.Equal(t, "ok", resp.Status)
}

func TestHandle_PauseThenStatusReflectsState(t *testing.T) {
	d := newTestDispatcher(t, optimise.NewRegistry())
	require.Equal(t, "ok", d.Handle(context.Background(), Envelope{Intent: "pause"}).Status)

	resp := d.Handle(context.Background(), Envelope{Intent: "status"})
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, data["paused"])
}

func TestHandle_StatusWithRequestIDReportsTicketStatus(t *testing.T) {
	reg := optimise.NewRegistry()
	reg.Register(stubOptimiser{itemType: corepath.Image, run: func(req request.Request) (request.Result, error) {
		return request.Result{Status: request.Succeeded}, nil
	}})
	d := newTestDispatcher(t, reg)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ticket := d.Coordinator.Enqueue(context.Background(), request.Request{ID: "req-1", ItemType: corepath.Image, SourcePath: corepath.MustFrom(path)})
	_, err := ticket.Wait(context.Background())
	require.NoError(t, err)

	resp := d.Handle(context.Background(), Envelope{Intent: "status", RequestID: "req-1"})
	require.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, string(request.Succeeded), data["status"])

	resp = d.Handle(context.Background(), Envelope{Intent: "status", RequestID: "never-seen"})
	require.Equal(t, "failed", resp.Status)
}

func TestHandle_ShortcutsListReturnsKnownIntents(t *testing.T) {
	d := newTestDispatcher(t, optimise.NewRegistry())
	resp := d.Handle(context.Background(), Envelope{Intent: "shortcuts.list"})
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, supportedIntents, resp.Data)
}

func TestHandle_UnknownIntentReportsUnknown(t *testing.T) {
	d := newTestDispatcher(t, optimise.NewRegistry())
	resp := d.Handle(context.Background(), Envelope{Intent: "nonsense"})
	require.Equal(t, "unknown_intent", resp.Status)
}

func TestHandle_OptimiseAggregatesOkWhenAllSucceed(t *testing.T) {
	reg := optimise.NewRegistry()
	reg.Register(stubOptimiser{itemType: corepath.Image, run: func(req request.Request) (request.Result, error) {
		return request.Result{Status: request.Succeeded}, nil
	}})
	d := newTestDispatcher(t, reg)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	payload, err := json.Marshal(OptimisePayload{Paths: []string{path}})
	require.NoError(t, err)

	resp := d.Handle(context.Background(), Envelope{Intent: "optimise", Payload: payload})
	require.Equal(t, "ok", resp.Status)

	outcomes, ok := resp.Data.([]OptimiseOutcome)
	require.True(t, ok)
	require.Len(t, outcomes, 1)
	require.Equal(t, string(request.Succeeded), outcomes[0].Status)
}

func TestHandle_OptimisePartialWhenMixedOutcomes(t *testing.T) {
	reg := optimise.NewRegistry()
	reg.Register(stubOptimiser{itemType: corepath.Image, run: func(req request.Request) (request.Result, error) {
		return request.Result{Status: request.Succeeded}, nil
	}})
	// Video has no registered optimiser, so it routes to Unsupported —
	// which counts toward "succeeded" in the aggregate (it isn't a
	// failure of the request, just an unhandled type), so pair it with
	// an optimiser that actively fails instead.
	reg.Register(stubOptimiser{itemType: corepath.Pdf, run: func(req request.Request) (request.Result, error) {
		return request.Result{Status: request.Failed, Message: "boom"}, nil
	}})
	d := newTestDispatcher(t, reg)

	dir := t.TempDir()
	jpg := filepath.Join(dir, "a.jpg")
	pdf := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(jpg, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(pdf, []byte("x"), 0o644))

	payload, err := json.Marshal(OptimisePayload{Paths: []string{jpg, pdf}})
	require.NoError(t, err)

	resp := d.Handle(context.Background(), Envelope{Intent: "optimise", Payload: payload})
	require.Equal(t, "partial", resp.Status)
}
