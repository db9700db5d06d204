// Package coordinator implements the Optimisation Coordinator: an
// unbounded FIFO queue drained by a fixed worker pool, exactly-once
// terminal delivery per request, and per-path advisory locking so the
// same source is never optimised by two workers at once.
//
// The queue/worker-pool shape is adapted from a single-worker
// candidate-draining loop generalized to N workers, and the advisory
// locking in lock.go from a similar crash-safe lock-file mechanism.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/request"
)

// activityLogName is the append-only tally file written next to the
// settings document.
const activityLogName = "clop-activity.log"

type queuedRequest struct {
	req    request.Request
	ticket *request.Ticket
	ctx    context.Context
}

// Coordinator owns the request queue, the worker pool, and the ticket
// registry used to look up in-flight and completed results.
type Coordinator struct {
	log      *corelog.Logger
	registry *optimise.Registry

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []queuedRequest
	closed bool

	ticketsMu sync.Mutex
	tickets   map[string]*request.Ticket

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc

	progressMu   sync.Mutex
	nextSubID    int
	progressSubs map[int]chan request.Progress

	workerCount  int
	wg           sync.WaitGroup
	started      bool
	activityLog  string
}

// SetActivityLogDir points the coordinator at a directory to append a
// best-effort, tab-separated activity tally to (timestamp, item type,
// source, destination, original size, final size, status) for every
// result an optimiser returns; requests resolved without running an
// optimiser (unsupported type, lock failure, cancelled before enqueue,
// optimiser panic) are not tallied. Call before Start; an empty or unset dir disables the tally
// entirely rather than erroring. Diagnostic only, never read back by
// the engine.
func (c *Coordinator) SetActivityLogDir(dir string) {
	c.activityLog = dir
}

// New constructs a Coordinator with workerCount workers; a count below 1
// is raised to 1.
func New(registry *optimise.Registry, workerCount int, log *corelog.Logger) *Coordinator {
	if workerCount < 1 {
		workerCount = 1
	}
	c := &Coordinator{
		log:          log,
		registry:     registry,
		tickets:      map[string]*request.Ticket{},
		cancels:      map[string]context.CancelFunc{},
		progressSubs: map[int]chan request.Progress{},
		workerCount:  workerCount,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Start launches the worker pool. Safe to call once.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.workerLoop()
	}
}

// Enqueue appends req to the FIFO and returns its Ticket. Enqueue is
// idempotent per request ID: re-enqueuing an ID already tracked returns
// the existing ticket instead of starting a second worker on it.
//
// cancellation is optional (nil is treated as context.Background()). A
// token that is already cancelled at call time resolves the ticket as
// Cancelled immediately without ever touching the queue; otherwise the
// enqueue, the Queued status, and the Progress(0, "Queued") broadcast
// happen together before Enqueue returns.
func (c *Coordinator) Enqueue(cancellation context.Context, req request.Request) *request.Ticket {
	if cancellation == nil {
		cancellation = context.Background()
	}

	c.ticketsMu.Lock()
	if existing, ok := c.tickets[req.ID]; ok {
		c.ticketsMu.Unlock()
		return existing
	}
	ticket := request.NewTicket(req.ID)
	c.tickets[req.ID] = ticket
	c.ticketsMu.Unlock()

	if err := cancellation.Err(); err != nil {
		ticket.Resolve(request.Result{RequestID: req.ID, Status: request.Cancelled, Message: "cancelled before enqueue"})
		return ticket
	}

	c.mu.Lock()
	c.queue = append(c.queue, queuedRequest{req: req, ticket: ticket, ctx: cancellation})
	c.cond.Signal()
	c.mu.Unlock()

	c.publishProgress(request.Progress{RequestID: req.ID, Percent: 0, Phase: "Queued"})

	return ticket
}

// GetStatus reports the lifecycle status of requestID: Queued, Running,
// or a terminal status once resolved. ok is false when no ticket was
// ever registered for this ID.
func (c *Coordinator) GetStatus(requestID string) (request.Status, bool) {
	c.ticketsMu.Lock()
	t, ok := c.tickets[requestID]
	c.ticketsMu.Unlock()
	if !ok {
		return "", false
	}
	return t.Status(), true
}

// Cancel requests cooperative cancellation of an in-flight request. A
// request that hasn't started running yet, or has already finished, is
// left untouched — the caller discovers the outcome via its ticket.
func (c *Coordinator) Cancel(requestID string) {
	c.cancelMu.Lock()
	cancel, ok := c.cancels[requestID]
	c.cancelMu.Unlock()
	if ok {
		cancel()
	}
}

// Subscribe returns a channel receiving every Progress broadcast and an
// unsubscribe func. Delivery is non-blocking: a slow subscriber drops
// progress updates rather than stalling workers.
func (c *Coordinator) Subscribe() (<-chan request.Progress, func()) {
	ch := make(chan request.Progress, 32)
	c.progressMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.progressSubs[id] = ch
	c.progressMu.Unlock()

	cancel := func() {
		c.progressMu.Lock()
		delete(c.progressSubs, id)
		c.progressMu.Unlock()
		close(ch)
	}
	return ch, cancel
}

func (c *Coordinator) publishProgress(p request.Progress) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	for _, ch := range c.progressSubs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Stop signals workers to exit once the queue drains, waiting up to
// ctx's deadline for in-flight work to finish.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) workerLoop() {
	defer c.wg.Done()
	for {
		q, ok := c.dequeue()
		if !ok {
			return
		}
		c.process(q)
	}
}

func (c *Coordinator) dequeue() (queuedRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.queue) == 0 {
		return queuedRequest{}, false
	}
	q := c.queue[0]
	c.queue = c.queue[1:]
	return q, true
}

func (c *Coordinator) process(q queuedRequest) {
	optimiser, ok := c.registry.Lookup(q.req.ItemType)
	if !ok {
		q.ticket.Resolve(request.Result{
			RequestID: q.req.ID,
			Status:    request.Unsupported,
			Message:   "no optimiser registered for item type " + string(q.req.ItemType),
		})
		return
	}

	release, err := acquirePathLock(q.req.SourcePath, c.log)
	if err != nil {
		q.ticket.Resolve(request.Result{
			RequestID: q.req.ID,
			Status:    request.Failed,
			Message:   err.Error(),
		})
		return
	}
	defer release()
	defer func() {
		if r := recover(); r != nil {
			c.log.Printf("optimiser panic for %s: %v", q.req.ID, r)
			q.ticket.Resolve(request.Result{RequestID: q.req.ID, Status: request.Failed, Message: fmt.Sprintf("optimiser panicked: %v", r)})
		}
	}()

	q.ticket.SetRunning()
	c.publishProgress(request.Progress{RequestID: q.req.ID, Percent: 0, Phase: "Preparing"})

	parent := q.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancelMu.Lock()
	c.cancels[q.req.ID] = cancel
	c.cancelMu.Unlock()
	defer func() {
		cancel()
		c.cancelMu.Lock()
		delete(c.cancels, q.req.ID)
		c.cancelMu.Unlock()
	}()

	origSize := statSizeOrZero(q.req.SourcePath.Value())
	result, err := optimiser.Optimise(ctx, q.req, func(p request.Progress) {
		c.publishProgress(p)
	})
	switch {
	case err != nil && ctx.Err() != nil:
		result = request.Result{RequestID: q.req.ID, Status: request.Cancelled, Message: "cancelled"}
	case err != nil && result.Status == "":
		result = request.Result{RequestID: q.req.ID, Status: request.Failed, Message: err.Error()}
	}
	if result.RequestID == "" {
		result.RequestID = q.req.ID
	}
	c.appendTally(q.req, result, origSize)
	q.ticket.Resolve(result)
}

// appendTally records one line per terminal result to the configured
// activity log. Failure to open or write the file is swallowed: the
// tally is diagnostic, never load-bearing.
func (c *Coordinator) appendTally(req request.Request, result request.Result, origSize int64) {
	if c.activityLog == "" {
		return
	}
	dest := req.SourcePath.Value()
	if result.OutputPath != nil {
		dest = result.OutputPath.Value()
	}

	f, err := os.OpenFile(filepath.Join(c.activityLog, activityLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	finalSize := statSizeOrZero(dest)
	fmt.Fprintf(f, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
		time.Now().Format(time.RFC3339), req.ItemType, req.SourcePath.Value(), dest, origSize, finalSize, result.Status)
}

func statSizeOrZero(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
