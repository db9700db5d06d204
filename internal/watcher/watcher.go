// Package watcher implements the Directory Watcher Pipeline (spec
// section 4.K): fsnotify-based monitoring of the configured
// ImageDirs/VideoDirs/PdfDirs roots, debounced coalescing of the event
// bursts editors and downloaders produce, file-stabilization polling
// before a changed file is considered safe to read, and dispatch into
// the coordinator with the watcher-origin metadata the automation layer
// and UI surface back to the user.
//
// Grounded on standardbeagle-lci's internal/indexing/watcher.go
// (FileWatcher: fsnotify.Watcher + recursive addWatches + debounced
// dispatch) and its pipeline_types.go (doublestar glob matching for
// exclude/include patterns), generalised from a single code index root
// to per-item-type roots with size/count limits and concurrency slots.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/clopapp/clop/internal/coordinator"
	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/request"
	"github.com/clopapp/clop/internal/settings"
)

// debounceWindow coalesces the burst of CREATE/WRITE/CHMOD events a
// single save or download produces into one dispatch.
const debounceWindow = 500 * time.Millisecond

type rootWatch struct {
	path     string
	itemType corepath.ItemType
	ignore   *ignoreSet
}

type pendingEntry struct {
	timer   *time.Timer
	attempt int
	root    rootWatch
}

// Watcher owns one fsnotify.Watcher multiplexed across every configured
// root, debouncing per path and dispatching stabilized files into the
// coordinator.
type Watcher struct {
	log      *corelog.Logger
	settings *settings.Store
	coord    *coordinator.Coordinator
	fsw      *fsnotify.Watcher

	roots []rootWatch

	mu      sync.Mutex
	pending map[string]*pendingEntry

	recentMu sync.Mutex
	recent   map[uint64]time.Time

	inFlightMu sync.Mutex
	inFlight   map[corepath.ItemType]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Watcher. Call Start to begin watching the configured
// roots.
func New(store *settings.Store, coord *coordinator.Coordinator, log *corelog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: creating fsnotify watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		log:      log,
		settings: store,
		coord:    coord,
		fsw:      fsw,
		pending:  map[string]*pendingEntry{},
		recent:   map[uint64]time.Time{},
		inFlight: map[corepath.ItemType]int{},
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// ConfiguredRoots reads ImageDirs/VideoDirs/PdfDirs from the settings
// store and returns the root set Start should watch. Document sources
// are discovered inside the same PdfDirs roots when
// AutoConvertDocumentsToPdf is enabled (spec 4.I has no dedicated
// directory list of its own).
func ConfiguredRoots(store *settings.Store) []rootWatch {
	var roots []rootWatch
	for _, dir := range settings.Get(store, settings.ImageDirs) {
		roots = append(roots, rootWatch{path: dir, itemType: corepath.Image, ignore: loadIgnoreSet(dir, corepath.Image)})
	}
	for _, dir := range settings.Get(store, settings.VideoDirs) {
		roots = append(roots, rootWatch{path: dir, itemType: corepath.Video, ignore: loadIgnoreSet(dir, corepath.Video)})
	}
	for _, dir := range settings.Get(store, settings.PdfDirs) {
		roots = append(roots, rootWatch{path: dir, itemType: corepath.Pdf, ignore: loadIgnoreSet(dir, corepath.Pdf)})
	}
	return roots
}

// Start registers every configured root with fsnotify (recursively, so
// newly created subdirectories are picked up too) and launches the one
// goroutine that processes events and drains fsnotify errors.
func (w *Watcher) Start() error {
	w.roots = ConfiguredRoots(w.settings)
	for _, r := range w.roots {
		if err := w.addTree(r.path); err != nil {
			w.log.Printf("watcher: skipping root %s: %v", r.path, err)
		}
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// addTree recursively subscribes every directory under root, following
// standardbeagle-lci's symlink-cycle-safe walk.
func (w *Watcher) addTree(root string) error {
	visited := map[string]bool{}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true
		if err := w.fsw.Add(path); err != nil {
			w.log.Printf("watcher: add watch %s: %v", path, err)
		}
		return nil
	})
}

// Stop cancels the pipeline and waits for its goroutines to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) rootFor(path string) (rootWatch, bool) {
	var best rootWatch
	found := false
	for _, r := range w.roots {
		if within(r.path, path) && (!found || len(r.path) > len(best.path)) {
			best = r
			found = true
		}
	}
	return best, found
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Printf("watcher: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0 {
		w.cancelPending(ev.Name)
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			_ = w.addTree(ev.Name)
		}
		return
	}
	if isOwnOutput(ev.Name) {
		return
	}
	root, ok := w.rootFor(ev.Name)
	if !ok {
		return
	}
	itemType, ok := corepath.ClassifyExtension(filepath.Ext(ev.Name))
	documentInPdfRoot := itemType == corepath.Document && root.itemType == corepath.Pdf
	if !ok || (itemType != root.itemType && !documentInPdfRoot) {
		return
	}
	if root.ignore.matches(root.path, ev.Name) {
		return
	}
	w.debounce(ev.Name, root, 1)
}

// debounce coalesces repeated events for path into a single dispatch
// after debounceWindow of quiescence, grounded on standardbeagle-lci's
// eventDebouncer.
func (w *Watcher) debounce(path string, root rootWatch, attempt int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if entry, ok := w.pending[path]; ok {
		entry.timer.Stop()
		entry.attempt = attempt
		entry.timer = time.AfterFunc(debounceWindow, func() { w.settle(path) })
		return
	}
	w.pending[path] = &pendingEntry{
		root:    root,
		attempt: attempt,
		timer:   time.AfterFunc(debounceWindow, func() { w.settle(path) }),
	}
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if entry, ok := w.pending[path]; ok {
		entry.timer.Stop()
		delete(w.pending, path)
	}
}

// settle runs off the debounce timer: it checks limits, waits for the
// file to stop changing, and either dispatches it to the coordinator or
// requeues with a linearly growing delay (requeueDelay).
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	entry, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	if settings.Get(w.settings, settings.PauseAutomaticOptimisations) {
		return
	}
	if !w.typeEnabled(entry.root.itemType) {
		return
	}

	info, stable := awaitStable(path)
	if !stable {
		if entry.attempt >= requeueMaxAttempt {
			w.log.Printf("watcher: giving up on %s after %d stabilization attempts", path, entry.attempt)
			return
		}
		delay := requeueDelay(entry.attempt + 1)
		w.mu.Lock()
		w.pending[path] = &pendingEntry{root: entry.root, attempt: entry.attempt + 1, timer: time.AfterFunc(delay, func() { w.settle(path) })}
		w.mu.Unlock()
		return
	}
	if info == nil {
		return
	}
	if !w.withinLimits(entry.root.itemType, info.Size()) {
		w.log.Printf("watcher: %s exceeds configured limits for %s, skipping", path, entry.root.itemType)
		return
	}
	if w.seenRecently(path) {
		return
	}

	w.dispatch(path, entry.root)
}

func (w *Watcher) typeEnabled(t corepath.ItemType) bool {
	switch t {
	case corepath.Image, corepath.ClipboardImage:
		return settings.Get(w.settings, settings.EnableAutomaticImageOptimisations)
	case corepath.Video, corepath.ClipboardVideo:
		return settings.Get(w.settings, settings.EnableAutomaticVideoOptimisations)
	default:
		return settings.Get(w.settings, settings.EnableAutomaticPdfOptimisations)
	}
}

func (w *Watcher) withinLimits(t corepath.ItemType, size int64) bool {
	const mb = 1024 * 1024
	var maxMb int
	switch t {
	case corepath.Image, corepath.ClipboardImage:
		maxMb = settings.Get(w.settings, settings.MaxImageSizeMb)
	case corepath.Video, corepath.ClipboardVideo:
		maxMb = settings.Get(w.settings, settings.MaxVideoSizeMb)
	default:
		maxMb = settings.Get(w.settings, settings.MaxPdfSizeMb)
	}
	return maxMb <= 0 || size <= int64(maxMb)*mb
}

// seenRecently reports whether path's current content fingerprint
// matches one produced by a dispatch within the last minute, preventing
// the watcher from re-processing a file it only just wrote back to
// (e.g. an in-place replace-original rewrite that re-triggers the watch
// before the advisory lock sibling is removed).
func (w *Watcher) seenRecently(path string) bool {
	fp := corepath.TryCreateFingerprint(path)
	if fp == nil {
		return false
	}
	key := fp.FastKey()
	w.recentMu.Lock()
	defer w.recentMu.Unlock()
	for k, at := range w.recent {
		if time.Since(at) > time.Minute {
			delete(w.recent, k)
		}
	}
	_, seen := w.recent[key]
	return seen
}

func (w *Watcher) markSeen(path string) {
	fp := corepath.TryCreateFingerprint(path)
	if fp == nil {
		return
	}
	w.recentMu.Lock()
	w.recent[fp.FastKey()] = time.Now()
	w.recentMu.Unlock()
}

func (w *Watcher) reserveSlot(t corepath.ItemType) bool {
	var limit int
	switch t {
	case corepath.Image, corepath.ClipboardImage:
		limit = settings.Get(w.settings, settings.MaxImageFileCount)
	case corepath.Video, corepath.ClipboardVideo:
		limit = settings.Get(w.settings, settings.MaxVideoFileCount)
	default:
		limit = settings.Get(w.settings, settings.MaxPdfFileCount)
	}
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	if limit > 0 && w.inFlight[t] >= limit {
		return false
	}
	w.inFlight[t]++
	return true
}

func (w *Watcher) releaseSlot(t corepath.ItemType) {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	if w.inFlight[t] > 0 {
		w.inFlight[t]--
	}
}

func (w *Watcher) dispatch(path string, root rootWatch) {
	if !w.reserveSlot(root.itemType) {
		w.log.Printf("watcher: concurrency limit reached for %s, deferring %s", root.itemType, path)
		w.mu.Lock()
		w.pending[path] = &pendingEntry{root: root, attempt: 1, timer: time.AfterFunc(requeueDelay(1), func() { w.settle(path) })}
		w.mu.Unlock()
		return
	}

	fp, err := corepath.From(path)
	if err != nil {
		w.releaseSlot(root.itemType)
		return
	}

	id, err := corepath.RequestID()
	if err != nil {
		w.releaseSlot(root.itemType)
		return
	}

	itemType := root.itemType
	if itemType == corepath.Pdf && corepath.IsDocumentExtension(fp.Extension()) {
		if !settings.Get(w.settings, settings.AutoConvertDocumentsToPdf) {
			w.releaseSlot(root.itemType)
			return
		}
		itemType = corepath.Document
	}

	req := request.Request{
		ID:         id,
		ItemType:   itemType,
		SourcePath: fp,
		Metadata: request.Metadata{
			"source":       "watcher",
			"watcher.type": string(root.itemType),
			"watcher.root": root.path,
		},
	}
	ticket := w.coord.Enqueue(w.ctx, req)
	w.markSeen(path)

	go func() {
		defer w.releaseSlot(root.itemType)
		result, err := ticket.Wait(w.ctx)
		if err != nil {
			return
		}
		if result.OutputPath != nil {
			w.markSeen(result.OutputPath.Value())
		}
	}()
}
