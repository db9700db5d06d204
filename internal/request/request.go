// Package request defines the engine's core data model: Request,
// Result, Ticket, Progress, and the typed metadata accessor helpers
// backing the dynamic metadata map carried on automation payloads.
package request

import (
	"context"
	"sync"
	"time"

	"github.com/clopapp/clop/internal/corepath"
)

// Status is the lifecycle state of a Result.
type Status string

const (
	Queued     Status = "Queued"
	Running    Status = "Running"
	Succeeded  Status = "Succeeded"
	Failed     Status = "Failed"
	Cancelled  Status = "Cancelled"
	Unsupported Status = "Unsupported"
)

// Request is immutable after submission.
type Request struct {
	ID         string
	ItemType   corepath.ItemType
	SourcePath corepath.FilePath
	Metadata   Metadata
}

// Result is created by a worker and destroyed after delivery to the
// ticket's listener.
type Result struct {
	RequestID  string
	Status     Status
	OutputPath *corepath.FilePath
	Message    string
	Duration   time.Duration
}

// Progress is broadcast on every worker heartbeat. Subscribers must
// tolerate duplicate and out-of-order percentages.
type Progress struct {
	RequestID string
	Percent   float64
	Phase     string
}

// Ticket is the handle returned at submission; it resolves exactly once
// with the request's final Result. Multiple callers may Wait on the same
// Ticket (e.g. the automation endpoint and a status poller). Between
// submission and resolution, Status reports Queued or Running so a
// poller can distinguish the two without blocking on Wait.
type Ticket struct {
	RequestID string

	statusMu sync.Mutex
	status   Status

	once   sync.Once
	closed chan struct{}
	result Result
}

// NewTicket constructs an unresolved Ticket for requestID, starting in
// the Queued state.
func NewTicket(requestID string) *Ticket {
	return &Ticket{RequestID: requestID, closed: make(chan struct{}), status: Queued}
}

// SetRunning transitions the ticket from Queued to Running. Called by the
// worker that picks the request off the queue; a no-op once the ticket
// has already resolved.
func (t *Ticket) SetRunning() {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	if t.status == Queued {
		t.status = Running
	}
}

// Status returns the ticket's current lifecycle state: Queued, Running,
// or one of the terminal states once resolved.
func (t *Ticket) Status() Status {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.status
}

// Resolve completes the ticket exactly once. A second call panics,
// surfacing a coordinator bug immediately rather than silently dropping
// a terminal event.
func (t *Ticket) Resolve(r Result) {
	resolved := false
	t.once.Do(func() {
		t.statusMu.Lock()
		t.status = r.Status
		t.statusMu.Unlock()
		t.result = r
		close(t.closed)
		resolved = true
	})
	if !resolved {
		panic("request: ticket " + t.RequestID + " resolved more than once")
	}
}

// Wait blocks until the ticket resolves or ctx is cancelled.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.closed:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// TryResult returns the resolved Result and true if the ticket has
// already completed, without blocking.
func (t *Ticket) TryResult() (Result, bool) {
	select {
	case <-t.closed:
		return t.result, true
	default:
		return Result{}, false
	}
}
