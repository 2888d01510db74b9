package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renderCall struct {
	content string
	theme   model.Theme
}

// fakeRenderer records calls and answers with a PDF naming the content. A
// non-nil gate holds every call until a value is sent for it.
type fakeRenderer struct {
	mu    sync.Mutex
	calls []renderCall
	err   error
	gate  chan struct{}
}

func (f *fakeRenderer) Render(ctx context.Context, content string, theme model.Theme) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, renderCall{content, theme})
	gate, err := f.gate, f.err
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte("%PDF-1.4 " + content + " " + string(theme)), nil
}

func (f *fakeRenderer) Calls() []renderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]renderCall(nil), f.calls...)
}

type fakeScorer struct {
	score float64
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeScorer) Score(_ context.Context, pdf []byte, _ string) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.score, f.err
}

func newTestPipeline(t *testing.T, r Renderer, auto bool) *Pipeline {
	t.Helper()
	p := NewPipeline(r, PipelineConfig{Debounce: 20 * time.Millisecond, RenderTimeout: time.Second, AutoRender: auto})
	t.Cleanup(p.Close)
	return p
}

func TestPipeline_DebounceCollapsesBurst(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r, true)
	p.Mount("", model.DefaultTheme)
	assert.Empty(t, r.Calls(), "blank content is not rendered on mount")

	for i := 1; i <= 5; i++ {
		p.ContentChanged(fmt.Sprintf("cv:\n  name: v%d\n", i))
	}
	assert.Eventually(t, func() bool { return len(r.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	p.Wait()

	time.Sleep(50 * time.Millisecond)
	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "cv:\n  name: v5\n", calls[0].content)

	st := p.Snapshot()
	assert.Equal(t, RenderSucceeded, st.Status)
	assert.False(t, st.Placeholder)
	assert.Contains(t, string(p.Preview().Bytes()), "v5")
}

func TestPipeline_UnchangedContentIsNotRerendered(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r, true)
	p.Mount("cv:\n  name: A\n", model.DefaultTheme)
	p.Wait()
	require.Len(t, r.Calls(), 1)

	p.ContentChanged("cv:\n  name: A\n")
	time.Sleep(60 * time.Millisecond)
	p.Wait()
	assert.Len(t, r.Calls(), 1)
}

func TestPipeline_ThemeChangeRendersImmediately(t *testing.T) {
	r := &fakeRenderer{}
	p := NewPipeline(r, PipelineConfig{Debounce: time.Hour, AutoRender: true})
	t.Cleanup(p.Close)
	p.Mount("cv:\n  name: A\n", model.DefaultTheme)
	p.Wait()

	p.SetTheme(model.ThemeModernDesign)
	p.Wait()
	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, model.ThemeModernDesign, calls[1].theme)
	assert.Equal(t, model.ThemeModernDesign, p.Snapshot().Theme)
}

func TestPipeline_AutoRenderOff(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r, false)
	p.Mount("cv:\n  name: A\n", model.DefaultTheme)
	p.ContentChanged("cv:\n  name: B\n")
	p.SetTheme(model.ThemeClassicDesign)
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, r.Calls())
	assert.Equal(t, RenderIdle, p.Snapshot().Status)

	p.RenderNow()
	p.Wait()
	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, renderCall{"cv:\n  name: B\n", model.ThemeClassicDesign}, calls[0])

	// Turning auto-render back on with nothing new to show does nothing.
	p.SetAutoRender(true)
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, r.Calls(), 1)

	p.SetAutoRender(false)
	p.ContentChanged("cv:\n  name: C\n")
	p.SetAutoRender(true)
	assert.Eventually(t, func() bool { return len(r.Calls()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestPipeline_FailureShowsPlaceholder(t *testing.T) {
	for name, tc := range map[string]struct {
		err  error
		hint string
	}{
		"renderer":    {fmt.Errorf("%w: exit status 1", domain.ErrRendererFailed), "pip install rendercv"},
		"no output":   {domain.ErrNoOutput, "design files"},
		"unreachable": {domain.ErrServiceUnavailable, "analysis backend"},
	} {
		t.Run(name, func(t *testing.T) {
			r := &fakeRenderer{err: tc.err}
			p := newTestPipeline(t, r, false)
			p.Mount("cv:\n  name: A\n", model.DefaultTheme)
			p.RenderNow()
			p.Wait()

			st := p.Snapshot()
			assert.Equal(t, RenderFailed, st.Status)
			assert.True(t, st.Placeholder)
			assert.Contains(t, st.ErrorMessage, tc.hint)
			pdf := p.Preview().Bytes()
			assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
		})
	}
}

func TestPipeline_NonPDFOutputIsNoOutput(t *testing.T) {
	p := newTestPipeline(t, rendererFunc(func(context.Context, string, model.Theme) ([]byte, error) {
		return []byte("<html>"), nil
	}), false)
	p.Mount("cv: {}\n", model.DefaultTheme)
	p.RenderNow()
	p.Wait()
	st := p.Snapshot()
	assert.Equal(t, RenderFailed, st.Status)
	assert.Equal(t, domain.UserMessage(domain.ErrNoOutput), st.ErrorMessage)
}

type rendererFunc func(ctx context.Context, content string, theme model.Theme) ([]byte, error)

func (f rendererFunc) Render(ctx context.Context, content string, theme model.Theme) ([]byte, error) {
	return f(ctx, content, theme)
}

func TestPipeline_StaleResponseDiscarded(t *testing.T) {
	slow := make(chan struct{})
	var n int
	var mu sync.Mutex
	p := newTestPipeline(t, rendererFunc(func(ctx context.Context, content string, _ model.Theme) ([]byte, error) {
		mu.Lock()
		n++
		first := n == 1
		mu.Unlock()
		if first {
			<-slow
		}
		return []byte("%PDF-1.4 " + content), nil
	}), false)

	p.Mount("cv:\n  name: old\n", model.DefaultTheme)
	p.RenderNow()
	p.ContentChanged("cv:\n  name: new\n")
	p.RenderNow()

	assert.Eventually(t, func() bool { return p.Snapshot().Status == RenderSucceeded }, time.Second, 5*time.Millisecond)
	current := p.Preview()
	assert.Contains(t, string(current.Bytes()), "new")

	close(slow)
	p.Wait()
	assert.Same(t, current, p.Preview())
	assert.Contains(t, string(p.Preview().Bytes()), "new")
}

func TestPipeline_OldArtifactReleasedOnSwap(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r, false)
	p.Mount("cv:\n  name: A\n", model.DefaultTheme)
	p.RenderNow()
	p.Wait()
	first := p.Preview()

	r.mu.Lock()
	r.gate = make(chan struct{})
	gate := r.gate
	r.mu.Unlock()

	p.ContentChanged("cv:\n  name: B\n")
	p.RenderNow()
	// Still pending: the old preview stays up.
	assert.Equal(t, RenderPending, p.Snapshot().Status)
	assert.Same(t, first, p.Preview())
	assert.False(t, first.Released())

	close(gate)
	p.Wait()
	assert.NotSame(t, first, p.Preview())
	assert.True(t, first.Released())
	assert.Nil(t, first.Bytes())
}

func TestPipeline_CurrentPDFNeverSeesReleasedArtifact(t *testing.T) {
	p := newTestPipeline(t, &fakeRenderer{}, false)
	_, ok := p.CurrentPDF()
	assert.False(t, ok, "nothing rendered yet")

	p.Mount("cv:\n  name: v0\n", model.DefaultTheme)
	p.RenderNow()
	p.Wait()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 50; i++ {
			p.ContentChanged(fmt.Sprintf("cv:\n  name: v%d\n", i))
			p.RenderNow()
		}
		p.Wait()
	}()
	for {
		pdf, ok := p.CurrentPDF()
		require.True(t, ok, "a swap must never leave a released preview")
		require.NotEmpty(t, pdf.ArtifactID)
		select {
		case <-done:
			pdf, _ = p.CurrentPDF()
			assert.Contains(t, string(pdf.Data), "v50")
			assert.False(t, pdf.Placeholder)
			return
		default:
		}
	}
}

func TestPipeline_Scoring(t *testing.T) {
	t.Run("score applied", func(t *testing.T) {
		p := newTestPipeline(t, &fakeRenderer{}, false)
		p.SetScorer(&fakeScorer{score: 0})
		p.Mount("cv: {}\n", model.DefaultTheme)
		p.RenderNow()
		p.Wait()
		st := p.Snapshot()
		require.NotNil(t, st.Score, "a score of 0 is still a score")
		assert.Equal(t, 0.0, *st.Score)
		assert.Equal(t, ScoreAvailable, st.ScoreStatus)
	})

	t.Run("score clamped", func(t *testing.T) {
		p := newTestPipeline(t, &fakeRenderer{}, false)
		p.SetScorer(&fakeScorer{score: 140})
		p.Mount("cv: {}\n", model.DefaultTheme)
		p.RenderNow()
		p.Wait()
		assert.Equal(t, 100.0, *p.Snapshot().Score)
	})

	t.Run("failure keeps render", func(t *testing.T) {
		p := newTestPipeline(t, &fakeRenderer{}, false)
		p.SetScorer(&fakeScorer{err: errors.New("scoring down")})
		p.Mount("cv: {}\n", model.DefaultTheme)
		p.RenderNow()
		p.Wait()
		st := p.Snapshot()
		assert.Equal(t, RenderSucceeded, st.Status)
		assert.False(t, st.Placeholder)
		assert.Nil(t, st.Score)
		assert.Equal(t, ScoreUnavailable, st.ScoreStatus)
	})

	t.Run("no score before scoring", func(t *testing.T) {
		p := newTestPipeline(t, &fakeRenderer{}, false)
		st := p.Snapshot()
		assert.Nil(t, st.Score)
		assert.Equal(t, ScoreNone, st.ScoreStatus)
	})

	t.Run("failed render is not scored", func(t *testing.T) {
		s := &fakeScorer{score: 50}
		p := newTestPipeline(t, &fakeRenderer{err: domain.ErrNoOutput}, false)
		p.SetScorer(s)
		p.Mount("cv: {}\n", model.DefaultTheme)
		p.RenderNow()
		p.Wait()
		assert.Zero(t, s.calls)
	})

	t.Run("seeded scores", func(t *testing.T) {
		p := newTestPipeline(t, &fakeRenderer{}, false)
		cur, orig := 61.0, 42.0
		p.SeedScores(&cur, &orig)
		st := p.Snapshot()
		assert.Equal(t, 61.0, *st.Score)
		assert.Equal(t, 42.0, *st.OriginalScore)
		assert.Equal(t, ScoreAvailable, st.ScoreStatus)
	})
}

func TestPipeline_CloseReleasesArtifact(t *testing.T) {
	p := NewPipeline(&fakeRenderer{}, PipelineConfig{})
	p.Mount("cv: {}\n", model.DefaultTheme)
	p.RenderNow()
	p.Wait()
	a := p.Preview()
	require.NotNil(t, a)
	p.Close()
	assert.True(t, a.Released())
	assert.Nil(t, p.Preview())

	// Closed pipelines ignore further work.
	p.ContentChanged("cv:\n  name: late\n")
	p.RenderNow()
	p.Wait()
	assert.Nil(t, p.Preview())
}
