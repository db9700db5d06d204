package automation

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clopapp/clop/internal/coordinator"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/request"
	"github.com/clopapp/clop/internal/settings"
)

// optimiseWait bounds how long a single automation-triggered request is
// awaited before the caller gets a Running status back instead of
// blocking the connection indefinitely.
const optimiseWait = 10 * time.Minute

// Dispatcher holds everything an intent handler needs regardless of
// which transport it arrived on. It performs no authentication itself —
// that is a transport concern (HTTP's bearer token; the named pipe
// relies on filesystem permissions on its socket).
type Dispatcher struct {
	Settings    *settings.Store
	Coordinator *coordinator.Coordinator
	Resolver    *Resolver
}

func (d *Dispatcher) Handle(ctx context.Context, in Envelope) Response {
	switch in.Intent {
	case "ping":
		return Response{Status: "ok", Data: map[string]any{"pong": true}}
	case "status":
		return d.handleStatus(in)
	case "shortcuts.list":
		return Response{Status: "ok", Data: supportedIntents}
	case "pause":
		settings.Set(d.Settings, settings.PauseAutomaticOptimisations, true)
		return Response{Status: "ok"}
	case "resume":
		settings.Set(d.Settings, settings.PauseAutomaticOptimisations, false)
		return Response{Status: "ok"}
	case "optimise":
		return d.handleOptimise(ctx, in)
	default:
		return Response{Status: "unknown_intent", Message: "unknown intent: " + in.Intent}
	}
}

// handleStatus reports status over the automation transports. With no
// RequestID it reports the global pause state the way it always has;
// with one, it looks up that request's per-ticket lifecycle status
// instead.
func (d *Dispatcher) handleStatus(in Envelope) Response {
	if in.RequestID == "" {
		return Response{Status: "ok", Data: map[string]any{
			"paused": settings.Get(d.Settings, settings.PauseAutomaticOptimisations),
		}}
	}
	status, ok := d.Coordinator.GetStatus(in.RequestID)
	if !ok {
		return Response{Status: "failed", Message: "unknown request id: " + in.RequestID}
	}
	return Response{Status: "ok", Data: map[string]any{
		"requestId": in.RequestID,
		"status":    string(status),
	}}
}

func (d *Dispatcher) handleOptimise(ctx context.Context, in Envelope) Response {
	var payload OptimisePayload
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return Response{Status: "failed", Message: "invalid optimise payload: " + err.Error()}
		}
	}

	resolved := d.Resolver.Resolve(payload.Paths, ResolveOptions{
		Recursive:    payload.Recursive,
		IncludeTypes: payload.IncludeTypes,
		ExcludeTypes: payload.ExcludeTypes,
	})

	// Each path is enqueued independently, so waiting on them one at a
	// time would serialize requests that the coordinator's worker pool
	// is already happy to run concurrently. errgroup fans the waits out,
	// the same group-of-workers shape standardbeagle-lci's integration
	// suite uses around errgroup.WithContext; each wait records its own
	// outcome and returns nil, so the group only joins the goroutines.
	outcomes := make([]OptimiseOutcome, len(resolved))
	g, gctx := errgroup.WithContext(ctx)
	for i, fp := range resolved {
		i, fp := i, fp
		g.Go(func() error {
			outcomes[i] = d.optimiseOne(gctx, fp, payload)
			return nil
		})
	}
	_ = g.Wait()

	succeeded, failed := 0, 0
	for _, outcome := range outcomes {
		switch request.Status(outcome.Status) {
		case request.Succeeded, request.Unsupported:
			succeeded++
		default:
			failed++
		}
	}

	status := "ok"
	switch {
	case len(outcomes) == 0:
		status = "ok"
	case failed > 0 && succeeded > 0:
		status = "partial"
	case failed > 0:
		status = "failed"
	}
	return Response{Status: status, Data: outcomes}
}

func (d *Dispatcher) optimiseOne(ctx context.Context, fp corepath.FilePath, payload OptimisePayload) OptimiseOutcome {
	itemType, ok := corepath.ClassifyExtension(fp.Extension())
	if !ok {
		return OptimiseOutcome{SourcePath: fp.Value(), Status: string(request.Unsupported)}
	}
	id, err := corepath.RequestID()
	if err != nil {
		return OptimiseOutcome{SourcePath: fp.Value(), Status: "Failed", Message: err.Error()}
	}

	metadata := request.Metadata{"source": "automation", "aggressive": payload.Aggressive, "removeAudio": payload.RemoveAudio}
	if payload.PlaybackSpeedFactor != nil {
		metadata["playbackSpeedFactor"] = *payload.PlaybackSpeedFactor
	}

	ticket := d.Coordinator.Enqueue(ctx, request.Request{ID: id, ItemType: itemType, SourcePath: fp, Metadata: metadata})

	waitCtx, cancel := context.WithTimeout(ctx, optimiseWait)
	result, waitErr := ticket.Wait(waitCtx)
	cancel()
	if waitErr != nil {
		return OptimiseOutcome{RequestID: id, SourcePath: fp.Value(), Status: string(request.Running), Message: "still running; poll status separately"}
	}

	outcome := OptimiseOutcome{RequestID: id, SourcePath: fp.Value(), Status: string(result.Status), Message: result.Message}
	if result.OutputPath != nil {
		outcome.OutputPath = result.OutputPath.Value()
	}
	return outcome
}
