package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"
	"alpha-resume/pkg/infrastructure"
)

type PipelineConfig struct {
	// Debounce collapses bursts of content changes into one render.
	Debounce time.Duration
	// RenderTimeout bounds one renderer call. Scoring gets the same budget.
	RenderTimeout time.Duration
	AutoRender    bool
	Logger        *slog.Logger
}

// Pipeline renders a session's serialized document into preview PDFs.
//
// Every dispatched render carries a sequence number and its result is only
// applied if no newer render was dispatched meanwhile. The previous artifact
// stays visible until the new one (or a placeholder) replaces it.
type Pipeline struct {
	renderer Renderer
	log      *slog.Logger
	debounce time.Duration
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	content      string
	theme        model.Theme
	lastRendered string
	autoRender   bool
	timer        *time.Timer
	timerGen     uint64
	seq          uint64

	status     RenderStatus
	artifact   *Artifact
	errMsg     string
	renderedAt time.Time

	scorer        Scorer
	score         *float64
	scoreStatus   ScoreStatus
	originalScore *float64
}

func NewPipeline(r Renderer, cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = time.Second
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		renderer:    r,
		log:         cfg.Logger,
		debounce:    cfg.Debounce,
		timeout:     cfg.RenderTimeout,
		ctx:         ctx,
		cancel:      cancel,
		autoRender:  cfg.AutoRender,
		theme:       model.DefaultTheme,
		status:      RenderIdle,
		scoreStatus: ScoreNone,
	}
}

// Mount sets the initial content and theme and renders right away when
// auto-render is on and there is something to render.
func (p *Pipeline) Mount(content string, theme model.Theme) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = content
	p.theme = theme.OrDefault()
	if p.autoRender && !blankContent(content) {
		p.dispatchLocked("mount")
	}
}

// ContentChanged records new serialized text and (re)arms the debounce.
func (p *Pipeline) ContentChanged(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = content
	if p.autoRender {
		p.armLocked()
	}
}

func (p *Pipeline) armLocked() {
	if p.closed {
		return
	}
	p.stopTimerLocked()
	gen := p.timerGen
	p.timer = time.AfterFunc(p.debounce, func() { p.debounceElapsed(gen) })
}

func (p *Pipeline) stopTimerLocked() {
	p.timerGen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Pipeline) debounceElapsed(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.timerGen || p.closed || !p.autoRender {
		return
	}
	p.timer = nil
	if blankContent(p.content) || p.content == p.lastRendered {
		p.log.Debug("debounced render skipped", "unchanged", p.content == p.lastRendered)
		return
	}
	p.dispatchLocked("content")
}

// SetTheme switches the theme. With auto-render on this renders at once,
// without waiting for the debounce.
func (p *Pipeline) SetTheme(theme model.Theme) {
	p.mu.Lock()
	defer p.mu.Unlock()
	theme = theme.OrDefault()
	if theme == p.theme {
		return
	}
	p.theme = theme
	if p.autoRender && !blankContent(p.content) {
		p.dispatchLocked("theme")
	}
}

// SetAutoRender toggles future automatic renders. Renders already dispatched
// are not affected. Turning it back on schedules a render if the content
// moved on since the last one.
func (p *Pipeline) SetAutoRender(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoRender = enabled
	if !enabled {
		p.stopTimerLocked()
		return
	}
	if !blankContent(p.content) && p.content != p.lastRendered {
		p.armLocked()
	}
}

// RenderNow renders immediately regardless of the auto-render setting and
// returns the request's sequence number.
func (p *Pipeline) RenderNow() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	return p.dispatchLocked("manual")
}

// SetScorer binds the scorer used after each successful render. Nil turns
// scoring off.
func (p *Pipeline) SetScorer(s Scorer) {
	p.mu.Lock()
	p.scorer = s
	p.mu.Unlock()
}

// SeedScores shows scores known before the first render: the stored score
// of a project and the score of the resume an analysis started from.
func (p *Pipeline) SeedScores(current, original *float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current != nil {
		v := *current
		p.score = &v
		p.scoreStatus = ScoreAvailable
	}
	if original != nil {
		v := *original
		p.originalScore = &v
	}
}

func (p *Pipeline) dispatchLocked(trigger string) uint64 {
	if p.closed {
		return p.seq
	}
	p.seq++
	seq := p.seq
	content, theme := p.content, p.theme
	p.lastRendered = content
	p.status = RenderPending
	p.log.Debug("render dispatched", "trigger", trigger, "seq", seq, "theme", theme)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.render(seq, content, theme)
	}()
	return seq
}

func (p *Pipeline) render(seq uint64, content string, theme model.Theme) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	start := time.Now()
	pdf, err := p.renderer.Render(ctx, content, theme)
	if err == nil && !bytes.HasPrefix(pdf, []byte("%PDF")) {
		err = fmt.Errorf("%w: invalid PDF output (len=%d)", domain.ErrNoOutput, len(pdf))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq || p.closed {
		p.log.Debug("stale render discarded", "seq", seq, "latest", p.seq)
		return
	}

	old := p.artifact
	if err != nil {
		msg := domain.UserMessage(err)
		p.log.Warn("render failed", "seq", seq, "theme", theme, "error", err)
		p.artifact = newArtifact(infrastructure.PlaceholderPDF("Preview unavailable", msg), true)
		p.status = RenderFailed
		p.errMsg = msg
	} else {
		p.log.Info("render succeeded", "seq", seq, "theme", theme, "bytes", len(pdf), "took", time.Since(start))
		p.artifact = newArtifact(pdf, false)
		p.status = RenderSucceeded
		p.errMsg = ""
	}
	p.renderedAt = time.Now()
	old.Release()

	if p.status == RenderSucceeded && p.scorer != nil {
		p.scoreStatus = ScorePending
		art, scorer := p.artifact, p.scorer
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runScore(scorer, art, pdf, content)
		}()
	}
}

func (p *Pipeline) runScore(s Scorer, art *Artifact, pdf []byte, content string) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	score, err := s.Score(ctx, pdf, content)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.artifact != art {
		p.log.Debug("score for superseded artifact discarded", "artifact", art.ID)
		return
	}
	if err != nil {
		p.log.Warn("scoring failed", "error", err)
		p.score = nil
		p.scoreStatus = ScoreUnavailable
		return
	}
	score = min(max(score, 0), 100)
	p.score = &score
	p.scoreStatus = ScoreAvailable
}

// Snapshot returns the current preview state.
func (p *Pipeline) Snapshot() PreviewState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PreviewState{
		Status:       p.status,
		ErrorMessage: p.errMsg,
		ScoreStatus:  p.scoreStatus,
		AutoRender:   p.autoRender,
		Theme:        p.theme,
		Renders:      p.seq,
	}
	if p.artifact != nil {
		st.ArtifactID = p.artifact.ID.String()
		st.Placeholder = p.artifact.Placeholder
	}
	if p.score != nil {
		v := *p.score
		st.Score = &v
	}
	if p.originalScore != nil {
		v := *p.originalScore
		st.OriginalScore = &v
	}
	if !p.renderedAt.IsZero() {
		t := p.renderedAt
		st.RenderedAt = &t
	}
	return st
}

// Preview returns the artifact currently shown, or nil before the first
// render resolves.
func (p *Pipeline) Preview() *Artifact {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.artifact
}

// PreviewPDF is the preview as served: the artifact's bytes together with
// what it is.
type PreviewPDF struct {
	ArtifactID  string
	Placeholder bool
	Data        []byte
}

// CurrentPDF reads the shown artifact in one step, so a render resolving
// concurrently cannot release it between lookup and read. ok is false before
// the first render resolves.
func (p *Pipeline) CurrentPDF() (PreviewPDF, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data := p.artifact.Bytes()
	if data == nil {
		return PreviewPDF{}, false
	}
	return PreviewPDF{ArtifactID: p.artifact.ID.String(), Placeholder: p.artifact.Placeholder, Data: data}, true
}

// Wait blocks until dispatched renders and their scoring calls finish.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Close cancels in-flight calls, waits for them and releases the artifact.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.stopTimerLocked()
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.artifact.Release()
	p.artifact = nil
	p.mu.Unlock()
}

func blankContent(s string) bool { return strings.TrimSpace(s) == "" }
