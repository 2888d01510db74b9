package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"
	"alpha-resume/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HealthChecker reports the analysis service's status.
type HealthChecker interface {
	Health(ctx context.Context) (string, error)
}

// ProjectLister is implemented by project stores that can list a user's
// projects.
type ProjectLister interface {
	ListProjects(ctx context.Context, token string) ([]domain.Project, error)
}

type Options struct {
	Renderer      usecase.Renderer
	Sessions      *usecase.SessionManager
	Watch         *usecase.WatchRegistry
	Health        HealthChecker
	Projects      ProjectLister
	RenderBackend string
	RenderTimeout time.Duration
	Logger        *slog.Logger
}

type Handler struct {
	renderer      usecase.Renderer
	sessions      *usecase.SessionManager
	watch         *usecase.WatchRegistry
	health        HealthChecker
	projects      ProjectLister
	backend       string
	renderTimeout time.Duration
	log           *slog.Logger
}

func NewHandler(o Options) *Handler {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = 30 * time.Second
	}
	return &Handler{
		renderer:      o.Renderer,
		sessions:      o.Sessions,
		watch:         o.Watch,
		health:        o.Health,
		projects:      o.Projects,
		backend:       o.RenderBackend,
		renderTimeout: o.RenderTimeout,
		log:           o.Logger,
	}
}

// Register mounts every route on app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/themes", h.Themes)
	app.Get("/projects", h.ListProjects)

	app.Post("/render-resume", h.RenderResume)
	app.Post("/render-resume-watch", h.Watch)
	app.Get("/render-resume-watch", h.WatchStatus)
	app.Get("/get-rendered-pdf", h.WatchPDF)

	app.Post("/sessions", h.CreateSession)
	app.Post("/sessions/analyze", h.AnalyzeSession)
	s := app.Group("/sessions/:id")
	s.Get("", h.GetSession)
	s.Delete("", h.DeleteSession)
	s.Put("/raw", h.EditRaw)
	s.Put("/sections/:section", h.UpdateSection)
	s.Post("/fields/focus", h.FocusField)
	s.Post("/fields/blur", h.BlurField)
	s.Post("/editor", h.SwitchEditor)
	s.Put("/theme", h.SetTheme)
	s.Put("/auto-render", h.SetAutoRender)
	s.Post("/render", h.Render)
	s.Get("/preview", h.Preview)
	s.Post("/steps/next", h.NextStep)
	s.Post("/steps/prev", h.PrevStep)
	s.Post("/steps/:index", h.GoToStep)
	s.Post("/finalize", h.Finalize)
	s.Post("/save", h.Save)
}

// fail writes err as {error, hint} with a status derived from its kind.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrServiceUnavailable):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, domain.ErrParse),
		errors.Is(err, usecase.ErrInvalidWatchID),
		usecase.IsClientError(err):
		status = fiber.StatusBadRequest
	}
	if status >= fiber.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "hint": domain.UserMessage(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func bearer(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.Clone(strings.TrimSpace(auth[7:]))
	}
	return ""
}

// parseTheme accepts "" as the default theme.
func parseTheme(s string) (model.Theme, error) {
	if s == "" {
		return model.DefaultTheme, nil
	}
	return model.ParseTheme(s)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":        "healthy",
		"renderBackend": h.backend,
	}
	if h.sessions != nil {
		resp["sessions"] = h.sessions.Len()
	}
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()
		st, err := h.health.Health(ctx)
		switch {
		case err != nil:
			resp["status"] = "degraded"
			resp["backend"] = "unreachable"
			resp["hint"] = domain.UserMessage(err)
		case st != "healthy":
			resp["status"] = "degraded"
			resp["backend"] = st
		default:
			resp["backend"] = st
		}
	}
	return c.JSON(resp)
}

func (h *Handler) Themes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"themes": model.Themes(), "default": model.DefaultTheme})
}

func (h *Handler) ListProjects(c *fiber.Ctx) error {
	if h.projects == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "project listing needs the postgres project store"})
	}
	token := bearer(c)
	if token == "" {
		return h.fail(c, domain.ErrUnauthorized)
	}
	projects, err := h.projects.ListProjects(c.UserContext(), token)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"projects": projects})
}

type renderReq struct {
	YAMLContent string `json:"yamlContent"`
	Theme       string `json:"theme"`
}

// RenderResume renders a document once, outside any session.
func (h *Handler) RenderResume(c *fiber.Ctx) error {
	var req renderReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if strings.TrimSpace(req.YAMLContent) == "" {
		return badRequest(c, "yamlContent is required")
	}
	theme, err := parseTheme(req.Theme)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.renderTimeout)
	defer cancel()
	start := time.Now()
	pdf, err := h.renderer.Render(ctx, req.YAMLContent, theme)
	if err != nil {
		return h.fail(c, err)
	}
	h.log.Info("rendered resume", "theme", theme, "bytes", len(pdf), "took", time.Since(start))
	return sendPDF(c, pdf, "resume.pdf")
}

func sendPDF(c *fiber.Ctx, pdf []byte, name string) error {
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", name))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(pdf)
}

type watchReq struct {
	SessionID   string `json:"sessionId"`
	Action      string `json:"action"`
	YAMLContent string `json:"yamlContent"`
	Theme       string `json:"theme"`
}

func (h *Handler) watchUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "watch mode needs the rendercv render backend"})
}

func (h *Handler) Watch(c *fiber.Ctx) error {
	if h.watch == nil {
		return h.watchUnavailable(c)
	}
	var req watchReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	theme, err := parseTheme(req.Theme)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var st usecase.WatchStatus
	switch req.Action {
	case "start", "":
		if strings.TrimSpace(req.YAMLContent) == "" {
			return badRequest(c, "yamlContent is required")
		}
		st, err = h.watch.Start(req.SessionID, req.YAMLContent, theme)
	case "update":
		st, err = h.watch.Update(req.SessionID, req.YAMLContent, theme)
	case "stop":
		err = h.watch.Stop(req.SessionID)
		st = usecase.WatchStatus{SessionID: req.SessionID}
	default:
		return badRequest(c, fmt.Sprintf("unknown action %q", req.Action))
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(st)
}

func (h *Handler) WatchStatus(c *fiber.Ctx) error {
	if h.watch == nil {
		return h.watchUnavailable(c)
	}
	id := c.Query("sessionId")
	if id == "" {
		return badRequest(c, "sessionId is required")
	}
	return c.JSON(h.watch.Status(id))
}

func (h *Handler) WatchPDF(c *fiber.Ctx) error {
	if h.watch == nil {
		return h.watchUnavailable(c)
	}
	id := c.Query("sessionId")
	if id == "" {
		return badRequest(c, "sessionId is required")
	}
	pdf, err := h.watch.LatestPDF(id)
	if err != nil {
		return h.fail(c, err)
	}
	return sendPDF(c, pdf, "resume.pdf")
}

type createSessionReq struct {
	ProjectID          string   `json:"projectId"`
	YAMLContent        string   `json:"yamlContent"`
	Theme              string   `json:"theme"`
	JobDescriptionPath string   `json:"jobDescriptionPath"`
	JobRole            string   `json:"jobRole"`
	TargetCompany      string   `json:"targetCompany"`
	Score              *float64 `json:"score"`
	OriginalScore      *float64 `json:"originalScore"`
}

func (h *Handler) CreateSession(c *fiber.Ctx) error {
	var req createSessionReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid payload")
		}
	}
	var theme model.Theme
	if req.Theme != "" {
		t, err := model.ParseTheme(req.Theme)
		if err != nil {
			return badRequest(c, err.Error())
		}
		theme = t
	}

	s, err := h.sessions.Create(c.UserContext(), usecase.SessionOptions{
		ProjectID:          req.ProjectID,
		Token:              bearer(c),
		YAMLContent:        req.YAMLContent,
		Theme:              theme,
		JobDescriptionPath: req.JobDescriptionPath,
		JobRole:            req.JobRole,
		TargetCompany:      req.TargetCompany,
		Score:              req.Score,
		OriginalScore:      req.OriginalScore,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.State())
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// AnalyzeSession forwards an uploaded resume to the analysis service and
// opens a session on the result.
func (h *Handler) AnalyzeSession(c *fiber.Ctx) error {
	resume, err := c.FormFile("resumeFile")
	if err != nil {
		return badRequest(c, "resumeFile is required")
	}
	req := domain.AnalysisRequest{
		ResumeFilename:     strings.Clone(resume.Filename),
		JobDescriptionText: strings.Clone(c.FormValue("jobDescriptionText")),
		Location:           strings.Clone(c.FormValue("location")),
		Email:              strings.Clone(c.FormValue("email")),
		Phone:              strings.Clone(c.FormValue("phone")),
		LinkedIn:           strings.Clone(c.FormValue("linkedin")),
		GitHub:             strings.Clone(c.FormValue("github")),
		JobRole:            strings.Clone(c.FormValue("jobRole")),
		TargetCompany:      strings.Clone(c.FormValue("targetCompany")),
	}
	if req.ResumeFile, err = readUpload(resume); err != nil {
		return h.fail(c, err)
	}
	if jd, err := c.FormFile("jobDescriptionFile"); err == nil {
		req.JobDescriptionFilename = strings.Clone(jd.Filename)
		if req.JobDescriptionFile, err = readUpload(jd); err != nil {
			return h.fail(c, err)
		}
	}
	if len(req.JobDescriptionFile) == 0 && strings.TrimSpace(req.JobDescriptionText) == "" {
		return badRequest(c, "jobDescriptionFile or jobDescriptionText is required")
	}

	s, res, err := h.sessions.CreateFromAnalysis(c.UserContext(), bearer(c), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": s.State(), "analysis": res})
}

func (h *Handler) session(c *fiber.Ctx) (*usecase.Session, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", c.Params("id"), domain.ErrNotFound)
	}
	return h.sessions.Get(id)
}

// withSession resolves :id and answers with the session state after fn.
func (h *Handler) withSession(fn func(c *fiber.Ctx, s *usecase.Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := h.session(c)
		if err != nil {
			return h.fail(c, err)
		}
		if err := fn(c, s); err != nil {
			return h.fail(c, err)
		}
		return c.JSON(s.State())
	}
}

func (h *Handler) GetSession(c *fiber.Ctx) error {
	return h.withSession(func(*fiber.Ctx, *usecase.Session) error { return nil })(c)
}

func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.sessions.Delete(s.ID); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) EditRaw(c *fiber.Ctx) error {
	return h.withSession(func(c *fiber.Ctx, s *usecase.Session) error {
		var req struct {
			YAMLContent *string `json:"yamlContent"`
		}
		if err := c.BodyParser(&req); err != nil || req.YAMLContent == nil {
			return fmt.Errorf("%w: yamlContent is required", domain.ErrParse)
		}
		s.Sync.EditRaw(*req.YAMLContent)
		return nil
	})(c)
}

func (h *Handler) UpdateSection(c *fiber.Ctx) error {
	return h.withSession(func(c *fiber.Ctx, s *usecase.Session) error {
		sec, err := model.ParseSection(c.Params("section"))
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrParse, err)
		}
		v, err := model.DecodeSection(sec, c.Body())
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrParse, err)
		}
		_, err = s.Sync.UpdateSection(sec, v)
		return err
	})(c)
}

func (h *Handler) FocusField(c *fiber.Ctx) error {
	return h.withSession(func(_ *fiber.Ctx, s *usecase.Session) error {
		s.Sync.FocusField()
		return nil
	})(c)
}

func (h *Handler) BlurField(c *fiber.Ctx) error {
	return h.withSession(func(_ *fiber.Ctx, s *usecase.Session) error {
		s.Sync.BlurField()
		return nil
	})(c)
}

func (h *Handler) SwitchEditor(c *fiber.Ctx) error {
	return h.withSession(func(c *fiber.Ctx, s *usecase.Session) error {
		var req struct {
			Editor string `json:"editor"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fmt.Errorf("%w: invalid payload", domain.ErrParse)
		}
		e, err := usecase.ParseEditor(req.Editor)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrParse, err)
		}
		return s.Sync.SwitchEditor(e)
	})(c)
}

func (h *Handler) SetTheme(c *fiber.Ctx) error {
	return h.withSession(func(c *fiber.Ctx, s *usecase.Session) error {
		var req struct {
			Theme string `json:"theme"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fmt.Errorf("%w: invalid payload", domain.ErrParse)
		}
		t, err := model.ParseTheme(req.Theme)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrParse, err)
		}
		s.SetTheme(t)
		return nil
	})(c)
}

func (h *Handler) SetAutoRender(c *fiber.Ctx) error {
	return h.withSession(func(c *fiber.Ctx, s *usecase.Session) error {
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
			return fmt.Errorf("%w: enabled is required", domain.ErrParse)
		}
		s.Pipeline.SetAutoRender(*req.Enabled)
		return nil
	})(c)
}

func (h *Handler) Render(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	seq := s.Pipeline.RenderNow()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"seq": seq, "preview": s.Pipeline.Snapshot()})
}

// Preview serves the artifact currently shown for the session.
func (h *Handler) Preview(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	pdf, ok := s.Pipeline.CurrentPDF()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no preview yet", "preview": s.Pipeline.Snapshot()})
	}
	c.Set("X-Preview-Placeholder", strconv.FormatBool(pdf.Placeholder))
	c.Set("X-Preview-Artifact", pdf.ArtifactID)
	return sendPDF(c, pdf.Data, "preview.pdf")
}

func (h *Handler) NextStep(c *fiber.Ctx) error {
	return h.withSession(func(_ *fiber.Ctx, s *usecase.Session) error { return s.NextStep() })(c)
}

func (h *Handler) PrevStep(c *fiber.Ctx) error {
	return h.withSession(func(_ *fiber.Ctx, s *usecase.Session) error { return s.Stepper.Prev() })(c)
}

func (h *Handler) GoToStep(c *fiber.Ctx) error {
	return h.withSession(func(c *fiber.Ctx, s *usecase.Session) error {
		i, err := strconv.Atoi(c.Params("index"))
		if err != nil {
			return fmt.Errorf("%w: %q", usecase.ErrStepOutOfRange, c.Params("index"))
		}
		return s.GoToStep(i)
	})(c)
}

func (h *Handler) Finalize(c *fiber.Ctx) error {
	return h.withSession(func(_ *fiber.Ctx, s *usecase.Session) error { return s.Finalize() })(c)
}

func (h *Handler) Save(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := h.sessions.Save(c.UserContext(), s)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"projectId": id})
}
