package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"alpha-resume/internal/codec"
	"alpha-resume/internal/model"
)

// Editor names one of the two views over a session's document.
type Editor string

const (
	EditorRaw  Editor = "raw"
	EditorForm Editor = "form"
)

// ParseEditor validates an editor name.
func ParseEditor(s string) (Editor, error) {
	switch Editor(s) {
	case EditorRaw, EditorForm:
		return Editor(s), nil
	}
	return "", fmt.Errorf("unknown editor %q", s)
}

// SyncState is the synchronizer's mutual exclusion state. Raw to form
// propagation only runs from SyncIdle; anything arriving in another state is
// deferred until the state returns to idle.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncUserEditing
	SyncSyncing
)

func (s SyncState) String() string {
	switch s {
	case SyncUserEditing:
		return "userEditing"
	case SyncSyncing:
		return "syncing"
	}
	return "idle"
}

func (s SyncState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrFormInactive is returned for form edits while the raw editor is active.
var ErrFormInactive = errors.New("form editor is not active")

// OriginState reports which editor currently owns the content.
type OriginState struct {
	ActiveEditor           Editor    `json:"activeEditor"`
	RawWasManuallyEdited   bool      `json:"rawWasManuallyEdited"`
	FormInitializedFromRaw bool      `json:"formInitializedFromRaw"`
	SnapshotComplex        bool      `json:"snapshotComplex"`
	ComplexityReasons      []string  `json:"complexityReasons,omitempty"`
	State                  SyncState `json:"state"`
	PendingRawToForm       bool      `json:"pendingRawToForm"`
}

type SyncConfig struct {
	// EditIdle ends a form edit this long after the last change.
	EditIdle time.Duration
	// Settle keeps the synchronizer in SyncSyncing after a raw to form pass.
	// Zero settles immediately.
	Settle time.Duration
	Logger *slog.Logger
}

// Synchronizer keeps a session's raw text and structured document consistent
// while the user alternates between the raw and form editors.
type Synchronizer struct {
	log      *slog.Logger
	editIdle time.Duration
	settle   time.Duration

	mu sync.Mutex

	doc model.Document
	raw string

	active          Editor
	rawEdited       bool
	snapshot        string
	complexity      codec.Complexity
	formInitialized bool
	pending         bool
	lastRawTheme    string

	state       SyncState
	editTimer   *time.Timer
	settleTimer *time.Timer
	timerGen    uint64

	onRaw   func(string)
	onTheme func(model.Theme)
}

func NewSynchronizer(cfg SyncConfig) *Synchronizer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.EditIdle <= 0 {
		cfg.EditIdle = time.Second
	}
	return &Synchronizer{
		log:      cfg.Logger,
		editIdle: cfg.EditIdle,
		settle:   cfg.Settle,
		active:   EditorRaw,
	}
}

// OnRawChange registers the listener for every change to the raw text. It
// runs outside the synchronizer's lock.
func (s *Synchronizer) OnRawChange(fn func(raw string)) {
	s.mu.Lock()
	s.onRaw = fn
	s.mu.Unlock()
}

// OnThemeChange registers the listener for themes picked up from
// design.theme in the raw text. Themes set through SetTheme are not reported.
func (s *Synchronizer) OnThemeChange(fn func(model.Theme)) {
	s.mu.Lock()
	s.onTheme = fn
	s.mu.Unlock()
}

// notice carries listener calls out of the critical section. The raw text is
// delivered before the theme.
type notice struct {
	raw     *string
	theme   *model.Theme
	onRaw   func(string)
	onTheme func(model.Theme)
}

func (n notice) fire() {
	if n.raw != nil && n.onRaw != nil {
		n.onRaw(*n.raw)
	}
	if n.theme != nil && n.onTheme != nil {
		n.onTheme(*n.theme)
	}
}

func (s *Synchronizer) notice() notice { return notice{onRaw: s.onRaw, onTheme: s.onTheme} }

func (n *notice) rawChanged(raw string) { n.raw = &raw }

func (n *notice) themeChanged(t model.Theme) { n.theme = &t }

// Load installs content from outside the editors: a stored project, an
// analysis result or a fresh session. The text becomes the original raw
// snapshot and the manual edit flag is cleared.
func (s *Synchronizer) Load(raw string) codec.Complexity {
	s.mu.Lock()
	n := s.notice()
	s.raw = raw
	s.snapshot = raw
	s.rawEdited = false
	s.complexity = codec.ClassifyComplexity(raw)
	n.rawChanged(raw)
	s.rawToFormLocked(&n)
	c := s.complexity
	s.mu.Unlock()

	n.fire()
	if c.IsComplex {
		s.log.Info("loaded complex document, form edits will not rewrite it", "reasons", c.Reasons)
	}
	return c
}

// EditRaw records a keystroke-level change typed in the raw editor.
func (s *Synchronizer) EditRaw(raw string) {
	s.mu.Lock()
	n := s.notice()
	if raw == s.raw {
		s.mu.Unlock()
		return
	}
	s.raw = raw
	s.rawEdited = true
	n.rawChanged(raw)
	s.rawToFormLocked(&n)
	s.mu.Unlock()
	n.fire()
}

// rawToFormLocked rebuilds the document from the raw text, or defers the
// rebuild while the user is typing in the form or a sync is settling.
func (s *Synchronizer) rawToFormLocked(n *notice) {
	if s.state != SyncIdle {
		s.pending = true
		return
	}
	s.pending = false

	// Blank text is a document with nothing filled in yet.
	if codec.Blank(s.raw) {
		s.doc = model.Document{Theme: s.doc.Theme}
		s.lastRawTheme = ""
		s.formInitialized = true
		return
	}

	parsed, err := codec.Deserialize(s.raw)
	if err != nil {
		s.log.Warn("raw text does not parse, keeping last good document", "error", err)
		s.formInitialized = false
		return
	}

	doc := parsed.Document
	// design.theme only wins when the raw value itself changed.
	if parsed.RawTheme != s.lastRawTheme {
		s.lastRawTheme = parsed.RawTheme
		if doc.Theme == "" {
			doc.Theme = s.doc.Theme
		}
	} else {
		doc.Theme = s.doc.Theme
	}
	if doc.Theme != s.doc.Theme {
		n.themeChanged(doc.Theme)
	}
	s.doc = doc
	s.formInitialized = true

	if s.settle <= 0 {
		return
	}
	s.state = SyncSyncing
	s.timerGen++
	gen := s.timerGen
	s.stopTimersLocked()
	s.settleTimer = time.AfterFunc(s.settle, func() { s.settled(gen) })
}

func (s *Synchronizer) settled(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || s.state != SyncSyncing {
		s.mu.Unlock()
		return
	}
	n := s.notice()
	s.state = SyncIdle
	if s.pending {
		s.rawToFormLocked(&n)
	}
	s.mu.Unlock()
	n.fire()
}

// FocusField marks the start of typing in a form field.
func (s *Synchronizer) FocusField() {
	s.mu.Lock()
	s.beginEditLocked()
	s.mu.Unlock()
}

// BlurField ends the current form edit immediately.
func (s *Synchronizer) BlurField() {
	s.mu.Lock()
	n := s.notice()
	s.endEditLocked(&n)
	s.mu.Unlock()
	n.fire()
}

func (s *Synchronizer) beginEditLocked() {
	s.stopTimersLocked()
	s.state = SyncUserEditing
	s.timerGen++
	gen := s.timerGen
	s.editTimer = time.AfterFunc(s.editIdle, func() { s.editIdleElapsed(gen) })
}

func (s *Synchronizer) editIdleElapsed(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	n := s.notice()
	s.endEditLocked(&n)
	s.mu.Unlock()
	n.fire()
}

func (s *Synchronizer) endEditLocked(n *notice) {
	if s.state != SyncUserEditing {
		return
	}
	s.stopTimersLocked()
	s.timerGen++
	s.state = SyncIdle
	if s.pending {
		s.rawToFormLocked(n)
	}
}

// UpdateSection applies a form edit. The edit counts as typing, so raw to
// form rebuilds stay deferred until the edit goes idle. It reports whether
// the raw text was rewritten.
func (s *Synchronizer) UpdateSection(section model.Section, value any) (bool, error) {
	s.mu.Lock()
	if s.active != EditorForm {
		s.mu.Unlock()
		return false, ErrFormInactive
	}
	if err := s.doc.Set(section, value); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.beginEditLocked()
	n := s.notice()
	wrote := s.formToRawLocked(&n)
	s.mu.Unlock()
	n.fire()
	return wrote, nil
}

// formAuthoritativeLocked reports whether form edits may rewrite the raw
// text: the form must have been built from the current raw text, and a
// complex original must have been edited by hand first.
func (s *Synchronizer) formAuthoritativeLocked() bool {
	if s.active != EditorForm || !s.formInitialized {
		return false
	}
	return !s.complexity.IsComplex || s.rawEdited
}

func (s *Synchronizer) formToRawLocked(n *notice) bool {
	if !s.formAuthoritativeLocked() {
		s.log.Debug("form to raw suppressed",
			"complex", s.complexity.IsComplex,
			"formInitialized", s.formInitialized,
		)
		return false
	}
	raw, err := codec.Serialize(s.doc)
	if err != nil {
		s.log.Warn("serialize document", "error", err)
		return false
	}
	if raw == s.raw {
		return false
	}
	s.raw = raw
	n.rawChanged(raw)
	return true
}

// SwitchEditor changes the active editor. Leaving the form restores an
// untouched complex original verbatim; entering the form rebuilds it from
// the current raw text.
func (s *Synchronizer) SwitchEditor(to Editor) error {
	if _, err := ParseEditor(string(to)); err != nil {
		return err
	}
	s.mu.Lock()
	n := s.notice()
	if to == s.active {
		s.mu.Unlock()
		return nil
	}
	s.stopTimersLocked()
	s.timerGen++
	s.state = SyncIdle
	s.active = to

	switch to {
	case EditorRaw:
		if s.complexity.IsComplex && !s.rawEdited && s.raw != s.snapshot {
			s.raw = s.snapshot
			n.rawChanged(s.raw)
		}
		s.formInitialized = false
	case EditorForm:
		s.formInitialized = false
		s.rawToFormLocked(&n)
	}
	s.mu.Unlock()
	n.fire()
	return nil
}

// SetTheme records a theme picked in the theme selector.
func (s *Synchronizer) SetTheme(theme model.Theme) {
	s.mu.Lock()
	n := s.notice()
	s.doc.Theme = theme
	s.formToRawLocked(&n)
	s.mu.Unlock()
	n.fire()
}

// Document returns a copy of the structured document.
func (s *Synchronizer) Document() model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Theme is the document's theme, or the default when none was chosen.
func (s *Synchronizer) Theme() model.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Theme.OrDefault()
}

func (s *Synchronizer) Raw() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

func (s *Synchronizer) Origin() OriginState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return OriginState{
		ActiveEditor:           s.active,
		RawWasManuallyEdited:   s.rawEdited,
		FormInitializedFromRaw: s.formInitialized,
		SnapshotComplex:        s.complexity.IsComplex,
		ComplexityReasons:      append([]string(nil), s.complexity.Reasons...),
		State:                  s.state,
		PendingRawToForm:       s.pending,
	}
}

// Close stops pending timers.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.timerGen++
	s.mu.Unlock()
}

func (s *Synchronizer) stopTimersLocked() {
	if s.editTimer != nil {
		s.editTimer.Stop()
		s.editTimer = nil
	}
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
}
