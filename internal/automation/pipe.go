package automation

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/clopapp/clop/internal/corelog"
)

// PipeServer serves the named-pipe transport (spec 4.L): framed UTF-8
// JSON messages, one Envelope per frame, each connection idle-timed-out
// after 30s of inactivity. Grounded on standardbeagle-lci's
// server.go Start/Shutdown shape, generalised from Unix-socket-only to
// the pipe_unix.go/pipe_windows.go per-OS split procrunner already uses
// for process-group handling.
type PipeServer struct {
	Name       string
	Dispatcher *Dispatcher
	log        *corelog.Logger

	listener net.Listener
}

func NewPipeServer(name string, d *Dispatcher, log *corelog.Logger) *PipeServer {
	return &PipeServer{Name: name, Dispatcher: d, log: log}
}

func (p *PipeServer) Start() error {
	l, err := listenPipe(p.Name)
	if err != nil {
		return err
	}
	p.listener = l
	go p.acceptLoop()
	return nil
}

func (p *PipeServer) Stop() error {
	if p.listener == nil {
		return nil
	}
	return p.listener.Close()
}

func (p *PipeServer) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		go p.serveConn(conn)
	}
}

// serveConn decodes one framed Envelope at a time. Each connection gets
// a uuid session id purely for log correlation — the spec leaves
// connection identity unspecified, and google/uuid already anchors the
// engine's automation surface elsewhere (the request_id namespace is
// reserved for nano_id per spec section 4.A).
func (p *PipeServer) serveConn(conn net.Conn) {
	sessionID := uuid.NewString()
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		var in Envelope
		if err := decoder.Decode(&in); err != nil {
			if err != io.EOF {
				p.log.Printf("pipe session %s: decode error: %v", sessionID, err)
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), optimiseWait)
		resp := p.Dispatcher.Handle(ctx, in)
		cancel()

		if err := encoder.Encode(resp); err != nil {
			p.log.Printf("pipe session %s: encode error: %v", sessionID, err)
			return
		}
	}
}
