// Package automation implements the Automation Endpoints (spec section
// 4.L): a framed-JSON intent/response protocol over a named pipe for
// shell/shortcut integrations, and a loopback-only HTTP surface for
// browser extensions and webhook integrations. Both transports share
// one dispatch table so "optimise" behaves identically whichever way
// it's invoked.
//
// Grounded on standardbeagle-lci's internal/server/server.go: a plain
// net.Listener plus net/http.ServeMux, no router library, JSON
// request/response structs encoded with the standard library's
// encoding/json — the corpus never reaches for gorilla/mux or similar
// for a small internal RPC surface.
package automation

import (
	"encoding/json"
	"time"
)

// idleTimeout closes a pipe connection that hasn't sent a frame in this
// long, bounding the number of half-open shell integrations that can
// accumulate.
const idleTimeout = 30 * time.Second

// Envelope is one framed JSON request, named-pipe or HTTP body alike.
type Envelope struct {
	Intent    string          `json:"intent"`
	RequestID string          `json:"requestId,omitempty"`
	KeepAlive bool            `json:"keepAlive,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Response is the reply envelope. Status is "ok", "partial", "failed",
// or an error code (e.g. "unknown_intent").
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OptimisePayload is the "optimise" intent's payload shape.
type OptimisePayload struct {
	Paths                []string `json:"paths"`
	Recursive            bool     `json:"recursive"`
	Aggressive           bool     `json:"aggressive"`
	RemoveAudio          bool     `json:"remove_audio"`
	PlaybackSpeedFactor  *float64 `json:"playback_speed_factor,omitempty"`
	IncludeTypes         []string `json:"include_types"`
	ExcludeTypes         []string `json:"exclude_types"`
}

// OptimiseOutcome is one resolved file's terminal status within an
// "optimise" response's Data field.
type OptimiseOutcome struct {
	RequestID  string `json:"requestId"`
	SourcePath string `json:"sourcePath"`
	OutputPath string `json:"outputPath,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// supportedIntents is what "shortcuts.list" reports — the menu a shell
// integration builds its UI from.
var supportedIntents = []string{"ping", "status", "shortcuts.list", "pause", "resume", "optimise"}
