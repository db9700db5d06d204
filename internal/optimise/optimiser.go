// Package optimise defines the polymorphic optimiser contract spec
// section 9 describes ("{item_type, optimise(request, context,
// cancellation) -> Result}") and a registry the coordinator dispatches
// through. Concrete optimisers live in the image, video, pdf, and
// document subpackages.
package optimise

import (
	"context"

	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/request"
)

// ProgressFunc reports a heartbeat; implementations may call it zero or
// more times before returning.
type ProgressFunc func(request.Progress)

// Optimiser is implemented once per corepath.ItemType.
type Optimiser interface {
	ItemType() corepath.ItemType
	Optimise(ctx context.Context, req request.Request, report ProgressFunc) (request.Result, error)
}

// Registry maps item types to the optimiser that handles them. Lookups
// for an unregistered type must route the request to Unsupported rather
// than error (spec section 4.D).
type Registry struct {
	byType map[corepath.ItemType]Optimiser
}

func NewRegistry() *Registry {
	return &Registry{byType: map[corepath.ItemType]Optimiser{}}
}

func (r *Registry) Register(o Optimiser) {
	r.byType[o.ItemType()] = o
}

func (r *Registry) Lookup(t corepath.ItemType) (Optimiser, bool) {
	o, ok := r.byType[t]
	return o, ok
}
