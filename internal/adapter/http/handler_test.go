package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"
	"alpha-resume/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRaw = `cv:
  name: Jane Doe
  email: jane@example.com
  sections:
    summary:
      - Backend engineer
`

type stubRenderer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, content string, theme model.Theme) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.4 " + string(theme)), nil
}

type stubHealth struct {
	status string
	err    error
}

func (s stubHealth) Health(context.Context) (string, error) { return s.status, s.err }

type stubAnalyzer struct{ req domain.AnalysisRequest }

func (a *stubAnalyzer) Analyze(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	a.req = req
	return &domain.AnalysisResult{YAMLContent: testRaw, JobDescriptionPath: "s1/job_description.txt"}, nil
}

type stubProc struct{}

func (stubProc) Stop() error { return nil }

type testEnv struct {
	app      *fiber.App
	renderer *stubRenderer
	sessions *usecase.SessionManager
	analyzer *stubAnalyzer
}

func newEnv(t *testing.T, o Options) *testEnv {
	t.Helper()
	env := &testEnv{renderer: &stubRenderer{}, analyzer: &stubAnalyzer{}}
	env.sessions = usecase.NewSessionManager(env.renderer, nil, nil, env.analyzer, usecase.ManagerConfig{
		Sync:     usecase.SyncConfig{EditIdle: time.Hour},
		Pipeline: usecase.PipelineConfig{Debounce: time.Hour, AutoRender: true},
	})
	t.Cleanup(env.sessions.Close)
	o.Renderer = env.renderer
	o.Sessions = env.sessions
	env.app = fiber.New()
	NewHandler(o).Register(env.app)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte, map[string]string) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, out, headers
}

type sessionView struct {
	ID          string `json:"id"`
	YAMLContent string `json:"yamlContent"`
	Document    model.Document
	Origin      struct {
		ActiveEditor string `json:"activeEditor"`
	} `json:"origin"`
	Preview struct {
		Status string      `json:"status"`
		Theme  model.Theme `json:"theme"`
	} `json:"preview"`
	Stepper struct {
		Current int `json:"current"`
	} `json:"stepper"`
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func decodeID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func TestHealth(t *testing.T) {
	env := newEnv(t, Options{RenderBackend: "rendercv"})
	code, body, _ := env.do(t, fiber.MethodGet, "/health", nil)
	assert.Equal(t, fiber.StatusOK, code)
	got := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", got["status"])
	assert.Equal(t, "rendercv", got["renderBackend"])

	env = newEnv(t, Options{Health: stubHealth{err: domain.ErrServiceUnavailable}})
	_, body, _ = env.do(t, fiber.MethodGet, "/health", nil)
	got = decode[map[string]any](t, body)
	assert.Equal(t, "degraded", got["status"])
	assert.Equal(t, "unreachable", got["backend"])
}

func TestThemes(t *testing.T) {
	env := newEnv(t, Options{})
	code, body, _ := env.do(t, fiber.MethodGet, "/themes", nil)
	assert.Equal(t, fiber.StatusOK, code)
	got := decode[struct {
		Themes  []model.ThemeInfo `json:"themes"`
		Default model.Theme       `json:"default"`
	}](t, body)
	assert.Len(t, got.Themes, 5)
	assert.Equal(t, model.ThemeEngineeringClassic, got.Default)
}

func TestRenderResume(t *testing.T) {
	env := newEnv(t, Options{})

	code, body, headers := env.do(t, fiber.MethodPost, "/render-resume", renderReq{YAMLContent: testRaw, Theme: "modernDesign"})
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Equal(t, "application/pdf", headers["Content-Type"])
	assert.Equal(t, "%PDF-1.4 modernDesign", string(body))

	code, _, _ = env.do(t, fiber.MethodPost, "/render-resume", renderReq{YAMLContent: " "})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _, _ = env.do(t, fiber.MethodPost, "/render-resume", renderReq{YAMLContent: testRaw, Theme: "nope"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	env.renderer.err = fmt.Errorf("%w: rendercv: executable file not found", domain.ErrRendererFailed)
	code, body, _ = env.do(t, fiber.MethodPost, "/render-resume", renderReq{YAMLContent: testRaw})
	assert.Equal(t, fiber.StatusInternalServerError, code)
	got := decode[map[string]string](t, body)
	assert.Contains(t, got["hint"], "pip install rendercv")
}

func TestSessionFlow(t *testing.T) {
	env := newEnv(t, Options{})

	code, body, _ := env.do(t, fiber.MethodPost, "/sessions", createSessionReq{YAMLContent: testRaw})
	require.Equal(t, fiber.StatusCreated, code, string(body))
	st := decode[sessionView](t, body)
	assert.Equal(t, "Jane Doe", st.Document.PersonalInfo.Name)
	base := "/sessions/" + st.ID

	code, body, _ = env.do(t, fiber.MethodPut, base+"/sections/summary", []string{"edited"})
	assert.Equal(t, fiber.StatusBadRequest, code, "form edits need the form editor")
	assert.Contains(t, string(body), "form editor is not active")

	code, body, _ = env.do(t, fiber.MethodPost, base+"/editor", map[string]string{"editor": "form"})
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Equal(t, "form", decode[sessionView](t, body).Origin.ActiveEditor)

	code, body, _ = env.do(t, fiber.MethodPut, base+"/sections/summary", []string{"edited in the form"})
	require.Equal(t, fiber.StatusOK, code, string(body))
	st = decode[sessionView](t, body)
	assert.Contains(t, st.YAMLContent, "edited in the form")

	code, _, _ = env.do(t, fiber.MethodPut, base+"/sections/hobbies", []string{"x"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body, _ = env.do(t, fiber.MethodPut, base+"/theme", map[string]string{"theme": "classicDesign"})
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Equal(t, model.ThemeClassicDesign, decode[sessionView](t, body).Preview.Theme)
	code, _, _ = env.do(t, fiber.MethodPut, base+"/theme", map[string]string{"theme": "comic"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	s, err := env.sessions.Get(decodeID(t, st.ID))
	require.NoError(t, err)
	s.Pipeline.Wait()

	code, body, headers := env.do(t, fiber.MethodGet, base+"/preview", nil)
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Equal(t, "false", headers["X-Preview-Placeholder"])
	assert.Equal(t, "%PDF-1.4 classicDesign", string(body))

	code, body, _ = env.do(t, fiber.MethodPost, base+"/steps/next", nil)
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Equal(t, 1, decode[sessionView](t, body).Stepper.Current)
	code, _, _ = env.do(t, fiber.MethodPost, base+"/steps/4", nil)
	assert.Equal(t, fiber.StatusBadRequest, code, "experience is still empty")
	code, _, _ = env.do(t, fiber.MethodPost, base+"/finalize", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _, _ = env.do(t, fiber.MethodPost, base+"/save", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, code, "no project store configured")

	code, _, _ = env.do(t, fiber.MethodDelete, base, nil)
	assert.Equal(t, fiber.StatusNoContent, code)
	code, _, _ = env.do(t, fiber.MethodGet, base, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _, _ = env.do(t, fiber.MethodGet, "/sessions/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestPreviewPlaceholder(t *testing.T) {
	env := newEnv(t, Options{})
	env.renderer.err = errors.New("boom")

	code, body, _ := env.do(t, fiber.MethodPost, "/sessions", createSessionReq{})
	require.Equal(t, fiber.StatusCreated, code)
	st := decode[sessionView](t, body)
	base := "/sessions/" + st.ID

	code, _, _ = env.do(t, fiber.MethodGet, base+"/preview", nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _, _ = env.do(t, fiber.MethodPut, base+"/raw", map[string]string{"yamlContent": testRaw})
	require.Equal(t, fiber.StatusOK, code)
	code, _, _ = env.do(t, fiber.MethodPut, base+"/auto-render", map[string]bool{"enabled": false})
	require.Equal(t, fiber.StatusOK, code)
	code, _, _ = env.do(t, fiber.MethodPost, base+"/render", nil)
	require.Equal(t, fiber.StatusAccepted, code)

	s, err := env.sessions.Get(decodeID(t, st.ID))
	require.NoError(t, err)
	s.Pipeline.Wait()

	code, body, headers := env.do(t, fiber.MethodGet, base+"/preview", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "true", headers["X-Preview-Placeholder"])
	assert.True(t, strings.HasPrefix(string(body), "%PDF-"))

	_, body, _ = env.do(t, fiber.MethodGet, base, nil)
	assert.Equal(t, "error", decode[sessionView](t, body).Preview.Status)
}

func TestAnalyzeSession(t *testing.T) {
	env := newEnv(t, Options{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("resumeFile", "cv.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-original"))
	require.NoError(t, w.WriteField("jobDescriptionText", "Go, Kubernetes"))
	require.NoError(t, w.WriteField("jobRole", "Platform Engineer"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/sessions/analyze", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	got := decode[struct {
		Session  sessionView           `json:"session"`
		Analysis domain.AnalysisResult `json:"analysis"`
	}](t, body)
	assert.Equal(t, "Jane Doe", got.Session.Document.PersonalInfo.Name)
	assert.Equal(t, "s1/job_description.txt", got.Analysis.JobDescriptionPath)
	assert.Equal(t, "cv.pdf", env.analyzer.req.ResumeFilename)
	assert.Equal(t, "%PDF-original", string(env.analyzer.req.ResumeFile))
	assert.Equal(t, "Platform Engineer", env.analyzer.req.JobRole)
}

func TestWatchRoutes(t *testing.T) {
	env := newEnv(t, Options{})
	code, _, _ := env.do(t, fiber.MethodPost, "/render-resume-watch", watchReq{SessionID: "a", YAMLContent: testRaw})
	assert.Equal(t, fiber.StatusNotImplemented, code)

	reg := usecase.NewWatchRegistry(t.TempDir(), func(string, model.Theme) (usecase.WatchProcess, error) {
		return stubProc{}, nil
	}, nil)
	t.Cleanup(reg.Close)
	env = newEnv(t, Options{Watch: reg})

	code, body, _ := env.do(t, fiber.MethodPost, "/render-resume-watch", watchReq{SessionID: "tab1", Action: "start", YAMLContent: testRaw})
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.True(t, decode[usecase.WatchStatus](t, body).Running)

	code, _, _ = env.do(t, fiber.MethodGet, "/get-rendered-pdf?sessionId=tab1", nil)
	assert.Equal(t, fiber.StatusInternalServerError, code, "nothing rendered yet")

	code, _, _ = env.do(t, fiber.MethodPost, "/render-resume-watch", watchReq{SessionID: "../x", YAMLContent: testRaw})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _, _ = env.do(t, fiber.MethodPost, "/render-resume-watch", watchReq{SessionID: "tab1", Action: "pause"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _, _ = env.do(t, fiber.MethodPost, "/render-resume-watch", watchReq{SessionID: "tab1", Action: "stop"})
	assert.Equal(t, fiber.StatusOK, code)
	_, body, _ = env.do(t, fiber.MethodGet, "/render-resume-watch?sessionId=tab1", nil)
	assert.False(t, decode[usecase.WatchStatus](t, body).Running)
}

func TestListProjectsNeedsStore(t *testing.T) {
	env := newEnv(t, Options{})
	code, _, _ := env.do(t, fiber.MethodGet, "/projects", nil)
	assert.Equal(t, fiber.StatusNotImplemented, code)
}
