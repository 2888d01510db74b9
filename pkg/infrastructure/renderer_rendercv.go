package infrastructure

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"
)

const (
	// RenderCVInputFile is the document file name inside a work directory.
	RenderCVInputFile = "resume.yaml"
	// RenderCVOutputDir is where rendercv writes its output.
	RenderCVOutputDir = "rendercv_output"

	designsDir        = "designs"
	defaultDesignFile = "default.yaml"
)

//go:embed assets/default_design.yaml
var defaultDesign []byte

// ThemeAssets is the directory of RenderCV design files, one per theme.
type ThemeAssets struct {
	Dir string
}

// Available reports whether the theme's design file can be read.
func (a ThemeAssets) Available(theme model.Theme) bool {
	if a.Dir == "" {
		return false
	}
	f, err := os.Open(filepath.Join(a.Dir, theme.OrDefault().Filename()))
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Prepare copies the designs into workDir/designs and returns the design
// path to pass to rendercv, relative to workDir. When the theme's design is
// not available the built-in default design is written instead and
// fallback is true.
func (a ThemeAssets) Prepare(workDir string, theme model.Theme) (design string, fallback bool, err error) {
	target := filepath.Join(workDir, designsDir)
	if err := os.RemoveAll(target); err != nil {
		return "", false, fmt.Errorf("clear designs: %w", err)
	}
	if a.Available(theme) {
		if err := os.CopyFS(target, os.DirFS(a.Dir)); err == nil {
			return filepath.Join(designsDir, theme.OrDefault().Filename()), false, nil
		}
		// A partial copy is not trusted; fall through to the default.
		_ = os.RemoveAll(target)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", false, fmt.Errorf("create designs: %w", err)
	}
	if err := os.WriteFile(filepath.Join(target, defaultDesignFile), defaultDesign, 0o644); err != nil {
		return "", false, fmt.Errorf("write default design: %w", err)
	}
	return filepath.Join(designsDir, defaultDesignFile), true, nil
}

// RenderCVRenderer renders documents by running the rendercv CLI in a
// scratch directory.
type RenderCVRenderer struct {
	Bin     string
	Assets  ThemeAssets
	WorkDir string
	Logger  *slog.Logger
}

func NewRenderCVRenderer(bin, designs, workDir string, logger *slog.Logger) *RenderCVRenderer {
	if bin == "" {
		bin = "rendercv"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderCVRenderer{Bin: bin, Assets: ThemeAssets{Dir: designs}, WorkDir: workDir, Logger: logger}
}

func (r *RenderCVRenderer) Render(ctx context.Context, yamlContent string, theme model.Theme) ([]byte, error) {
	tmpDir, err := os.MkdirTemp(r.WorkDir, "render-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	design, fallback, err := r.Assets.Prepare(tmpDir, theme)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRendererFailed, err)
	}
	if fallback {
		r.Logger.Warn("theme design unavailable, using built-in default", "theme", theme, "designs", r.Assets.Dir)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, RenderCVInputFile), []byte(yamlContent), 0o644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Bin, "render", RenderCVInputFile, "--design", design)
	cmd.Dir = tmpDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s not found on PATH", domain.ErrRendererFailed, r.Bin)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRendererFailed, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v: %s", domain.ErrRendererFailed, err, lastLines(out, 5))
	}

	pdfPath, err := FindOutputPDF(filepath.Join(tmpDir, RenderCVOutputDir))
	if err != nil {
		return nil, err
	}
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoOutput, err)
	}
	r.Logger.Debug("rendercv finished", "theme", theme, "pdf", filepath.Base(pdfPath), "bytes", len(pdf))
	return pdf, nil
}

// WatchCmd is a rendercv process started with --watch.
type WatchCmd struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
}

// StartWatch runs rendercv in watch mode over dir/resume.yaml.
func (r *RenderCVRenderer) StartWatch(dir string, theme model.Theme) (*WatchCmd, error) {
	design, fallback, err := r.Assets.Prepare(dir, theme)
	if err != nil {
		return nil, err
	}
	if fallback {
		r.Logger.Warn("theme design unavailable, using built-in default", "theme", theme)
	}
	cmd := exec.Command(r.Bin, "render", RenderCVInputFile, "--design", design, "--watch")
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	w := &WatchCmd{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(w.done)
	}()
	return w, nil
}

// Stop kills the process and waits for it to exit.
func (w *WatchCmd) Stop() error {
	var err error
	w.once.Do(func() {
		select {
		case <-w.done:
			return
		default:
		}
		if kerr := w.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = kerr
		}
		<-w.done
	})
	return err
}

// FindOutputPDF locates the PDF rendercv wrote: resume.pdf if present,
// otherwise the first PDF found anywhere under dir.
func FindOutputPDF(dir string) (string, error) {
	preferred := filepath.Join(dir, "resume.pdf")
	if st, err := os.Stat(preferred); err == nil && !st.IsDir() {
		return preferred, nil
	}
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: scan %s: %v", domain.ErrNoOutput, filepath.Base(dir), err)
	}
	return "", fmt.Errorf("%w: no PDF in %s", domain.ErrNoOutput, filepath.Base(dir))
}

func lastLines(out []byte, n int) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return string(bytes.Join(lines, []byte(" | ")))
}
