package usecase

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"
	"alpha-resume/pkg/infrastructure"

	"github.com/fsnotify/fsnotify"
)

// WatchProcess is a running renderer in watch mode.
type WatchProcess interface {
	Stop() error
}

// WatchSpawner starts a watch mode renderer over dir/resume.yaml.
type WatchSpawner func(dir string, theme model.Theme) (WatchProcess, error)

var watchIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrInvalidWatchID rejects session ids that cannot name a directory.
var ErrInvalidWatchID = errors.New("invalid watch session id")

// WatchStatus describes one watch session.
type WatchStatus struct {
	SessionID string      `json:"sessionId"`
	Running   bool        `json:"running"`
	Theme     model.Theme `json:"theme,omitempty"`
	StartedAt *time.Time  `json:"startedAt,omitempty"`
	LatestPDF string      `json:"latestPdf,omitempty"`
	UpdatedAt *time.Time  `json:"updatedAt,omitempty"`
}

type watchEntry struct {
	id        string
	dir       string
	theme     model.Theme
	proc      WatchProcess
	fsw       *fsnotify.Watcher
	startedAt time.Time

	mu        sync.Mutex
	latest    string
	updatedAt time.Time
}

// WatchRegistry owns watch mode renderer processes, one per session. Each
// session gets its own directory under root; the newest PDF written to its
// output directory is tracked with fsnotify.
type WatchRegistry struct {
	root  string
	spawn WatchSpawner
	log   *slog.Logger

	mu      sync.Mutex
	entries map[string]*watchEntry
	wg      sync.WaitGroup
}

func NewWatchRegistry(root string, spawn WatchSpawner, logger *slog.Logger) *WatchRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchRegistry{root: root, spawn: spawn, log: logger, entries: map[string]*watchEntry{}}
}

// Start writes the document and starts watching. Starting a session that is
// already running updates it instead.
func (r *WatchRegistry) Start(sessionID, yamlContent string, theme model.Theme) (WatchStatus, error) {
	if !watchIDPattern.MatchString(sessionID) {
		return WatchStatus{}, fmt.Errorf("%w: %q", ErrInvalidWatchID, sessionID)
	}
	theme = theme.OrDefault()

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sessionID]; ok {
		if err := r.updateLocked(e, yamlContent, theme); err != nil {
			return WatchStatus{}, err
		}
		return e.status(), nil
	}

	dir := filepath.Join(r.root, sessionID)
	outDir := filepath.Join(dir, infrastructure.RenderCVOutputDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return WatchStatus{}, fmt.Errorf("create watch dir: %w", err)
	}
	if err := writeWatchDocument(dir, yamlContent); err != nil {
		os.RemoveAll(dir)
		return WatchStatus{}, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		os.RemoveAll(dir)
		return WatchStatus{}, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(outDir); err != nil {
		fsw.Close()
		os.RemoveAll(dir)
		return WatchStatus{}, fmt.Errorf("watch %s: %w", outDir, err)
	}

	proc, err := r.spawn(dir, theme)
	if err != nil {
		fsw.Close()
		os.RemoveAll(dir)
		return WatchStatus{}, fmt.Errorf("%w: start watch: %v", domain.ErrRendererFailed, err)
	}

	e := &watchEntry{id: sessionID, dir: dir, theme: theme, proc: proc, fsw: fsw, startedAt: time.Now()}
	r.entries[sessionID] = e
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.track(e)
	}()
	r.log.Info("watch started", "session", sessionID, "dir", dir, "theme", theme)
	return e.status(), nil
}

// track records every PDF the renderer writes until the watcher is closed.
func (r *WatchRegistry) track(e *watchEntry) {
	for {
		select {
		case ev, ok := <-e.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".pdf") {
				continue
			}
			e.mu.Lock()
			e.latest = ev.Name
			e.updatedAt = time.Now()
			e.mu.Unlock()
			r.log.Debug("watch output updated", "session", e.id, "file", ev.Name)
		case err, ok := <-e.fsw.Errors:
			if !ok {
				return
			}
			r.log.Warn("watch error", "session", e.id, "error", err)
		}
	}
}

// Update rewrites the watched document. A theme change restarts the
// renderer since the design is fixed when it starts.
func (r *WatchRegistry) Update(sessionID, yamlContent string, theme model.Theme) (WatchStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return WatchStatus{}, fmt.Errorf("watch %s: %w", sessionID, domain.ErrNotFound)
	}
	if err := r.updateLocked(e, yamlContent, theme.OrDefault()); err != nil {
		return WatchStatus{}, err
	}
	return e.status(), nil
}

func (r *WatchRegistry) updateLocked(e *watchEntry, yamlContent string, theme model.Theme) error {
	if err := writeWatchDocument(e.dir, yamlContent); err != nil {
		return err
	}
	if theme == e.theme {
		return nil
	}
	if err := e.proc.Stop(); err != nil {
		r.log.Warn("stop watch process", "session", e.id, "error", err)
	}
	proc, err := r.spawn(e.dir, theme)
	if err != nil {
		return fmt.Errorf("%w: restart watch: %v", domain.ErrRendererFailed, err)
	}
	e.mu.Lock()
	e.proc = proc
	e.theme = theme
	e.mu.Unlock()
	r.log.Info("watch restarted for theme", "session", e.id, "theme", theme)
	return nil
}

// Stop ends a watch session and removes its directory.
func (r *WatchRegistry) Stop(sessionID string) error {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("watch %s: %w", sessionID, domain.ErrNotFound)
	}
	return r.shutdown(e)
}

func (r *WatchRegistry) shutdown(e *watchEntry) error {
	var errs []error
	if err := e.proc.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop process: %w", err))
	}
	if err := e.fsw.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close watcher: %w", err))
	}
	if err := os.RemoveAll(e.dir); err != nil {
		errs = append(errs, fmt.Errorf("remove dir: %w", err))
	}
	r.log.Info("watch stopped", "session", e.id)
	return errors.Join(errs...)
}

func (r *WatchRegistry) Status(sessionID string) WatchStatus {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return WatchStatus{SessionID: sessionID}
	}
	return e.status()
}

// LatestPDF returns the newest PDF the session's renderer produced.
func (r *WatchRegistry) LatestPDF(sessionID string) ([]byte, error) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("watch %s: %w", sessionID, domain.ErrNotFound)
	}

	e.mu.Lock()
	path := e.latest
	e.mu.Unlock()
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrNoOutput, filepath.Base(path), err)
		}
		// The renderer replaced its output since the event; look again.
		r.log.Debug("tracked pdf gone, scanning output", "session", sessionID, "file", path)
	}
	found, err := infrastructure.FindOutputPDF(filepath.Join(e.dir, infrastructure.RenderCVOutputDir))
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(found)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrNoOutput, filepath.Base(found), err)
	}
	return b, nil
}

// Close stops every watch session.
func (r *WatchRegistry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = map[string]*watchEntry{}
	r.mu.Unlock()
	for _, e := range entries {
		if err := r.shutdown(e); err != nil {
			r.log.Warn("watch shutdown", "session", e.id, "error", err)
		}
	}
	r.wg.Wait()
}

func (e *watchEntry) status() WatchStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	started := e.startedAt
	st := WatchStatus{
		SessionID: e.id,
		Running:   true,
		Theme:     e.theme,
		StartedAt: &started,
		LatestPDF: e.latest,
	}
	if !e.updatedAt.IsZero() {
		t := e.updatedAt
		st.UpdatedAt = &t
	}
	return st
}

func writeWatchDocument(dir, yamlContent string) error {
	if err := os.WriteFile(filepath.Join(dir, infrastructure.RenderCVInputFile), []byte(yamlContent), 0o644); err != nil {
		return fmt.Errorf("write watch document: %w", err)
	}
	return nil
}
