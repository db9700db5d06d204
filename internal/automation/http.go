package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/settings"
)

// HTTPServer serves the loopback-only transport (spec 4.L): path prefix
// /clop/, POST /optimise, POST /share, POST /teams/card, GET /status.
// Grounded directly on standardbeagle-lci's IndexServer: plain
// net.Listen + http.ServeMux + http.Server, no router dependency.
type HTTPServer struct {
	Settings   *settings.Store
	Dispatcher *Dispatcher
	log        *corelog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// Addr returns the bound listener address, valid after Start returns.
// Tests bind AutomationHttpPort to 0 and read the OS-assigned port back
// through this rather than guessing a free one.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func NewHTTPServer(store *settings.Store, d *Dispatcher, log *corelog.Logger) *HTTPServer {
	return &HTTPServer{Settings: store, Dispatcher: d, log: log}
}

// Start binds 127.0.0.1:<AutomationHttpPort> only — the loopback
// restriction spec 4.L requires is enforced by the bind address itself,
// not by inspecting RemoteAddr per request.
func (s *HTTPServer) Start() error {
	port := settings.Get(s.Settings, settings.AutomationHttpPort)
	listener, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("automation: binding loopback listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/clop/status", s.handleStatus)
	mux.HandleFunc("/clop/optimise", s.handleOptimise)
	mux.HandleFunc("/clop/share", s.handleShare)
	mux.HandleFunc("/clop/teams/card", s.handleTeamsCard)

	srv := &http.Server{Handler: mux}

	s.mu.Lock()
	s.listener = listener
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Printf("automation http: serve error: %v", err)
		}
	}()
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// authorize enforces bearer-token auth with a fixed-time comparison. An
// unconfigured token disables auth entirely (spec 4.L: "absent token
// disables auth"), unlike the named pipe's fail-closed posture — the
// pipe has no notion of "configured" vs "absent" since it never carries
// a token at all.
func (s *HTTPServer) authorize(r *http.Request) bool {
	configured := settings.Get(s.Settings, settings.AutomationAccessToken)
	if configured == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return checkToken(configured, presented)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status), "message": message})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "status is GET-only")
		return
	}
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}
	resp := s.Dispatcher.Handle(r.Context(), Envelope{Intent: "status", RequestID: r.URL.Query().Get("requestId")})
	writeJSON(w, resp)
}

func (s *HTTPServer) handleOptimise(w http.ResponseWriter, r *http.Request) {
	s.dispatchPost(w, r, "optimise")
}

// handleShare is the same "optimise" intent under a route name share
// extensions find more natural; spec 4.L lists it as a distinct
// endpoint without a distinct payload shape.
func (s *HTTPServer) handleShare(w http.ResponseWriter, r *http.Request) {
	s.dispatchPost(w, r, "optimise")
}

// handleTeamsCard optimises the referenced paths and returns the
// outcomes wrapped in a minimal Adaptive Card payload a Teams
// incoming-webhook connector can post verbatim. Actually delivering it
// to a configured webhook URL is out of scope here (spec.md names no
// webhook target); this endpoint builds the payload for the caller to
// forward, gated on EnableTeamsAdaptiveCards the way every other
// automation surface is gated on its feature flag.
func (s *HTTPServer) handleTeamsCard(w http.ResponseWriter, r *http.Request) {
	if !settings.Get(s.Settings, settings.EnableTeamsAdaptiveCards) {
		writeError(w, http.StatusNotFound, "Teams adaptive cards are disabled")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "teams/card is POST-only")
		return
	}
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}
	body, err := readPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := s.Dispatcher.Handle(r.Context(), Envelope{Intent: "optimise", Payload: body})
	writeJSON(w, map[string]any{
		"type":    "AdaptiveCard",
		"version": "1.4",
		"body": []map[string]any{
			{"type": "TextBlock", "text": "Clop optimisation " + resp.Status, "weight": "Bolder"},
		},
		"data": resp.Data,
	})
}

func (s *HTTPServer) dispatchPost(w http.ResponseWriter, r *http.Request, intent string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, intent+" is POST-only")
		return
	}
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}
	body, err := readPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), optimiseWait)
	defer cancel()
	resp := s.Dispatcher.Handle(ctx, Envelope{Intent: intent, Payload: body})
	writeJSON(w, resp)
}

func readPayload(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding request body: %w", err)
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
