package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/clopapp/clop/internal/automation"
	"github.com/clopapp/clop/internal/coordinator"
	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/optimise/document"
	"github.com/clopapp/clop/internal/optimise/image"
	"github.com/clopapp/clop/internal/optimise/pdf"
	"github.com/clopapp/clop/internal/optimise/video"
	"github.com/clopapp/clop/internal/probe"
	"github.com/clopapp/clop/internal/settings"
	"github.com/clopapp/clop/internal/watcher"
)

// engine wires up one settings store, one optimiser registry, and the
// coordinator that drains it — the set of long-lived collaborators both
// the optimise and watch subcommands need, following the same
// construct-once-pass-everywhere shape flsq.Run built cfg/enc around.
type engine struct {
	settings    *settings.Store
	registry    *optimise.Registry
	coordinator *coordinator.Coordinator
	resolver    *automation.Resolver
	log         *corelog.Logger
}

func newEngine(configDir string) (*engine, error) {
	if configDir == "" {
		userConfig, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving default config directory: %w", err)
		}
		configDir = filepath.Join(userConfig, "clop")
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory %s: %w", configDir, err)
	}

	store, err := settings.Open(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening settings store: %w", err)
	}

	log := corelog.New("clop")
	registry := optimise.NewRegistry()

	registry.Register(image.New(store))

	prober := probe.New(lookPathOrDefault("ffprobe"))
	registry.Register(video.New(store, prober, lookPathOrDefault("ffmpeg")))

	pdfOptimiser := pdf.New(store, lookPathOrDefault("gs"))
	registry.Register(pdfOptimiser)
	registry.Register(document.New(lookPathOrDefault("soffice"), pdfOptimiser))

	workers := settings.Get(store, settings.WorkerCount)
	coord := coordinator.New(registry, workers, log)
	coord.SetActivityLogDir(store.ConfigDir())
	coord.Start()

	return &engine{
		settings:    store,
		registry:    registry,
		coordinator: coord,
		resolver:    automation.NewResolver(store),
		log:         log,
	}, nil
}

// lookPathOrDefault resolves name against PATH, falling back to the bare
// name so exec still produces a clear "executable file not found"
// error at invocation time rather than an empty path earlier.
func lookPathOrDefault(name string) string {
	if resolved, err := exec.LookPath(name); err == nil {
		return resolved
	}
	return name
}

func (e *engine) newAutomationServer() *automation.Server {
	return automation.NewServer(e.settings, e.coordinator, e.resolver, e.log)
}

func (e *engine) newWatcher() (*watcher.Watcher, error) {
	return watcher.New(e.settings, e.coordinator, e.log)
}

func (e *engine) shutdown(ctx context.Context) error {
	return e.coordinator.Stop(ctx)
}
