package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderCV writes a shell script standing in for the rendercv CLI.
func fakeRenderCV(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "rendercv")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func designsFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, th := range model.Themes() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, th.Filename), []byte("design:\n  theme: classic\n"), 0o644))
	}
	return dir
}

func TestRenderCVRenderer_Render(t *testing.T) {
	ctx := context.Background()

	t.Run("success uses the theme design", func(t *testing.T) {
		bin := fakeRenderCV(t, `
[ "$1" = render ] || exit 2
[ "$4" = designs/modernDesign.yaml ] || exit 3
[ -f "$4" ] || exit 4
mkdir -p rendercv_output
printf '%%PDF-1.4 fake' > rendercv_output/resume.pdf
`)
		r := NewRenderCVRenderer(bin, designsFixture(t), t.TempDir(), nil)
		pdf, err := r.Render(ctx, "cv:\n  name: A\n", model.ThemeModernDesign)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 fake", string(pdf))
	})

	t.Run("unreadable designs fall back to the default design", func(t *testing.T) {
		bin := fakeRenderCV(t, `
[ "$4" = designs/default.yaml ] || exit 3
mkdir -p rendercv_output/nested
printf '%%PDF-1.4 other' > rendercv_output/nested/Jane_CV.pdf
`)
		r := NewRenderCVRenderer(bin, filepath.Join(t.TempDir(), "missing"), t.TempDir(), nil)
		pdf, err := r.Render(ctx, "cv: {}\n", model.ThemeClassicDesign)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 other", string(pdf))
	})

	t.Run("tool failure", func(t *testing.T) {
		bin := fakeRenderCV(t, "echo 'ValidationError: cv.name' >&2\nexit 1\n")
		r := NewRenderCVRenderer(bin, designsFixture(t), t.TempDir(), nil)
		_, err := r.Render(ctx, "cv: {}\n", model.DefaultTheme)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRendererFailed)
		assert.Contains(t, err.Error(), "ValidationError")
	})

	t.Run("no output", func(t *testing.T) {
		bin := fakeRenderCV(t, "exit 0\n")
		r := NewRenderCVRenderer(bin, designsFixture(t), t.TempDir(), nil)
		_, err := r.Render(ctx, "cv: {}\n", model.DefaultTheme)
		assert.ErrorIs(t, err, domain.ErrNoOutput)
	})

	t.Run("missing binary", func(t *testing.T) {
		r := NewRenderCVRenderer(filepath.Join(t.TempDir(), "nope"), designsFixture(t), t.TempDir(), nil)
		_, err := r.Render(ctx, "cv: {}\n", model.DefaultTheme)
		assert.ErrorIs(t, err, domain.ErrRendererFailed)
	})

	t.Run("work dir is cleaned up", func(t *testing.T) {
		bin := fakeRenderCV(t, "mkdir -p rendercv_output\nprintf '%%PDF' > rendercv_output/resume.pdf\n")
		work := t.TempDir()
		r := NewRenderCVRenderer(bin, designsFixture(t), work, nil)
		_, err := r.Render(ctx, "cv: {}\n", model.DefaultTheme)
		require.NoError(t, err)
		entries, err := os.ReadDir(work)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestThemeAssets(t *testing.T) {
	assets := ThemeAssets{Dir: designsFixture(t)}
	assert.True(t, assets.Available(model.ThemeSB2NovDesign))
	assert.False(t, ThemeAssets{}.Available(model.DefaultTheme))

	work := t.TempDir()
	design, fallback, err := assets.Prepare(work, "")
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, filepath.Join("designs", "engineeringClassic.yaml"), design)
	assert.FileExists(t, filepath.Join(work, design))

	// Preparing twice replaces the previous copy.
	_, _, err = assets.Prepare(work, model.ThemeModernDesign)
	require.NoError(t, err)
}

func TestFindOutputPDF(t *testing.T) {
	dir := t.TempDir()
	_, err := FindOutputPDF(filepath.Join(dir, "absent"))
	assert.ErrorIs(t, err, domain.ErrNoOutput)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "CV.pdf"), []byte("x"), 0o644))
	got, err := FindOutputPDF(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "CV.pdf"), got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "resume.pdf"), []byte("x"), 0o644))
	got, err = FindOutputPDF(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "resume.pdf"), got)
}
