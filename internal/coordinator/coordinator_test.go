package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/request"
)

type stubOptimiser struct {
	itemType corepath.ItemType
	run      func(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error)
}

func (s stubOptimiser) ItemType() corepath.ItemType { return s.itemType }

func (s stubOptimiser) Optimise(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
	return s.run(ctx, req, report)
}

func newTestCoordinator(t *testing.T, reg *optimise.Registry) *Coordinator {
	t.Helper()
	c := New(reg, 2, corelog.New("coordinator-test"))
	c.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

func TestEnqueue_UnsupportedItemTypeRoutesWithoutAnOptimiser(t *testing.T) {
	reg := optimise.NewRegistry()
	c := newTestCoordinator(t, reg)

	req := request.Request{ID: "r1", ItemType: "unknown", SourcePath: corepath.MustFrom(t.TempDir() + "/f.bin")}
	ticket := c.Enqueue(context.Background(), req)

	result, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, request.Unsupported, result.Status)
}

func TestEnqueue_SameRequestIDReturnsSameTicket(t *testing.T) {
	reg := optimise.NewRegistry()
	started := make(chan struct{})
	block := make(chan struct{})
	reg.Register(stubOptimiser{
		itemType: corepath.Image,
		run: func(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
			close(started)
			<-block
			return request.Result{Status: request.Succeeded}, nil
		},
	})
	c := newTestCoordinator(t, reg)
	defer close(block)

	req := request.Request{ID: "dup", ItemType: corepath.Image, SourcePath: corepath.MustFrom(t.TempDir() + "/f.jpg")}
	t1 := c.Enqueue(context.Background(), req)
	<-started
	t2 := c.Enqueue(context.Background(), req)

	require.Same(t, t1, t2)
}

func TestEnqueue_PreCancelledContextResolvesWithoutRunning(t *testing.T) {
	reg := optimise.NewRegistry()
	ran := false
	reg.Register(stubOptimiser{
		itemType: corepath.Image,
		run: func(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
			ran = true
			return request.Result{Status: request.Succeeded}, nil
		},
	})
	c := newTestCoordinator(t, reg)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	req := request.Request{ID: "pre-cancelled", ItemType: corepath.Image, SourcePath: corepath.MustFrom(t.TempDir() + "/f.jpg")}
	ticket := c.Enqueue(cancelled, req)

	result, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, request.Cancelled, result.Status)
	require.False(t, ran)
}

func TestGetStatus_ReportsQueuedThenTerminalStatus(t *testing.T) {
	reg := optimise.NewRegistry()
	started := make(chan struct{})
	block := make(chan struct{})
	reg.Register(stubOptimiser{
		itemType: corepath.Image,
		run: func(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
			close(started)
			<-block
			return request.Result{Status: request.Succeeded}, nil
		},
	})
	c := newTestCoordinator(t, reg)
	defer close(block)

	req := request.Request{ID: "status-check", ItemType: corepath.Image, SourcePath: corepath.MustFrom(t.TempDir() + "/f.jpg")}
	ticket := c.Enqueue(context.Background(), req)

	status, ok := c.GetStatus(req.ID)
	require.True(t, ok)
	require.Contains(t, []request.Status{request.Queued, request.Running}, status)

	<-started
	result, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, request.Succeeded, result.Status)

	status, ok = c.GetStatus(req.ID)
	require.True(t, ok)
	require.Equal(t, request.Succeeded, status)

	_, ok = c.GetStatus("never-seen")
	require.False(t, ok)
}

func TestCancel_ResolvesTicketAsCancelled(t *testing.T) {
	reg := optimise.NewRegistry()
	started := make(chan struct{})
	reg.Register(stubOptimiser{
		itemType: corepath.Video,
		run: func(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
			close(started)
			<-ctx.Done()
			return request.Result{}, ctx.Err()
		},
	})
	c := newTestCoordinator(t, reg)

	req := request.Request{ID: "cancel-me", ItemType: corepath.Video, SourcePath: corepath.MustFrom(t.TempDir() + "/f.mp4")}
	ticket := c.Enqueue(context.Background(), req)
	<-started
	c.Cancel(req.ID)

	result, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, request.Cancelled, result.Status)
}

func TestSubscribe_ReceivesProgressBroadcasts(t *testing.T) {
	reg := optimise.NewRegistry()
	reg.Register(stubOptimiser{
		itemType: corepath.Pdf,
		run: func(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
			report(request.Progress{RequestID: req.ID, Percent: 50, Phase: "Working"})
			return request.Result{Status: request.Succeeded}, nil
		},
	})
	c := newTestCoordinator(t, reg)

	ch, cancel := c.Subscribe()
	defer cancel()

	req := request.Request{ID: "p1", ItemType: corepath.Pdf, SourcePath: corepath.MustFrom(t.TempDir() + "/f.pdf")}
	ticket := c.Enqueue(context.Background(), req)
	_, err := ticket.Wait(context.Background())
	require.NoError(t, err)

	seenWorking := false
	for i := 0; i < 10; i++ {
		select {
		case p := <-ch:
			if p.Phase == "Working" {
				seenWorking = true
			}
		case <-time.After(100 * time.Millisecond):
		}
		if seenWorking {
			break
		}
	}
	require.True(t, seenWorking)
}
