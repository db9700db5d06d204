package automation

import (
	"context"

	"github.com/clopapp/clop/internal/coordinator"
	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/settings"
)

// pipeName is the named pipe/socket identity spec 4.L calls
// "clop-automation".
const pipeName = "clop-automation"

// Server bundles both automation transports behind one lifecycle, the
// shape cmd/clop wires up alongside the watcher and coordinator.
type Server struct {
	Pipe *PipeServer
	HTTP *HTTPServer
}

func NewServer(store *settings.Store, coord *coordinator.Coordinator, resolver *Resolver, log *corelog.Logger) *Server {
	dispatcher := &Dispatcher{Settings: store, Coordinator: coord, Resolver: resolver}
	return &Server{
		Pipe: NewPipeServer(pipeName, dispatcher, log),
		HTTP: NewHTTPServer(store, dispatcher, log),
	}
}

func (s *Server) Start() error {
	if !settings.Get(s.HTTP.Settings, settings.EnableCrossAppAutomation) {
		return nil
	}
	if err := s.Pipe.Start(); err != nil {
		return err
	}
	return s.HTTP.Start()
}

func (s *Server) Stop(ctx context.Context) error {
	_ = s.Pipe.Stop()
	return s.HTTP.Stop(ctx)
}
