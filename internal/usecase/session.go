package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"

	"github.com/google/uuid"
)

// SessionOptions seeds a new editing session. A project id takes precedence
// over YAMLContent.
type SessionOptions struct {
	ProjectID          string
	Token              string
	YAMLContent        string
	Theme              model.Theme
	JobDescriptionPath string
	JobRole            string
	TargetCompany      string
	Score              *float64
	OriginalScore      *float64
}

// Session is one browser tab's editor: the synchronizer, the render
// pipeline and the form stepper over a single document.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	Sync     *Synchronizer
	Pipeline *Pipeline
	Stepper  *Stepper

	mu            sync.Mutex
	projectID     string
	token         string
	jdPath        string
	jobRole       string
	targetCompany string
	scoring       ScoringBackend
}

// SessionState is everything the editor page needs to draw itself.
type SessionState struct {
	ID                 string         `json:"id"`
	ProjectID          string         `json:"projectId,omitempty"`
	JobDescriptionPath string         `json:"jobDescriptionPath,omitempty"`
	YAMLContent        string         `json:"yamlContent"`
	Document           model.Document `json:"document"`
	Origin             OriginState    `json:"origin"`
	Preview            PreviewState   `json:"preview"`
	Stepper            StepperState   `json:"stepper"`
}

func (s *Session) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

func (s *Session) State() SessionState {
	doc := s.Sync.Document()
	s.mu.Lock()
	projectID, jdPath := s.projectID, s.jdPath
	s.mu.Unlock()
	return SessionState{
		ID:                 s.ID.String(),
		ProjectID:          projectID,
		JobDescriptionPath: jdPath,
		YAMLContent:        s.Sync.Raw(),
		Document:           doc,
		Origin:             s.Sync.Origin(),
		Preview:            s.Pipeline.Snapshot(),
		Stepper:            s.Stepper.State(&doc),
	}
}

// SetTheme applies a theme picked by the user to the document and the
// preview. The preview renders immediately when auto-render is on.
func (s *Session) SetTheme(theme model.Theme) {
	s.Sync.SetTheme(theme)
	s.Pipeline.SetTheme(theme)
}

func (s *Session) NextStep() error {
	doc := s.Sync.Document()
	return s.Stepper.Next(&doc)
}

func (s *Session) GoToStep(i int) error {
	doc := s.Sync.Document()
	return s.Stepper.GoTo(&doc, i)
}

func (s *Session) Finalize() error {
	doc := s.Sync.Document()
	return s.Stepper.Finalize(&doc)
}

func (s *Session) close() {
	s.Sync.Close()
	s.Pipeline.Close()
}

// bindScorerLocked picks the scoring mode: a project is scored by id with its
// current text, an analysis session against its stored job description.
func (s *Session) bindScorerLocked() {
	switch {
	case s.scoring == nil:
		s.Pipeline.SetScorer(nil)
	case s.projectID != "" && s.token != "":
		s.Pipeline.SetScorer(projectScorer{b: s.scoring, projectID: s.projectID, token: s.token})
	case s.jdPath != "":
		s.Pipeline.SetScorer(storedJDScorer{b: s.scoring, path: s.jdPath})
	default:
		s.Pipeline.SetScorer(nil)
	}
}

type storedJDScorer struct {
	b    ScoringBackend
	path string
}

func (s storedJDScorer) Score(ctx context.Context, pdf []byte, _ string) (float64, error) {
	return s.b.ScoreWithStoredJD(ctx, pdf, s.path)
}

type projectScorer struct {
	b         ScoringBackend
	projectID string
	token     string
}

func (s projectScorer) Score(ctx context.Context, _ []byte, yamlContent string) (float64, error) {
	return s.b.ScoreProject(ctx, s.projectID, yamlContent, s.token)
}

type ManagerConfig struct {
	Sync     SyncConfig
	Pipeline PipelineConfig
	Logger   *slog.Logger
}

// SessionManager owns the live editing sessions.
type SessionManager struct {
	renderer Renderer
	projects ProjectStore
	scoring  ScoringBackend
	analyzer Analyzer
	cfg      ManagerConfig
	log      *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessionManager wires sessions to their collaborators. projects,
// scoring and analyzer may be nil; the features that need them then fail
// with domain.ErrServiceUnavailable.
func NewSessionManager(r Renderer, projects ProjectStore, scoring ScoringBackend, analyzer Analyzer, cfg ManagerConfig) *SessionManager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sync.Logger == nil {
		cfg.Sync.Logger = cfg.Logger
	}
	if cfg.Pipeline.Logger == nil {
		cfg.Pipeline.Logger = cfg.Logger
	}
	return &SessionManager{
		renderer: r,
		projects: projects,
		scoring:  scoring,
		analyzer: analyzer,
		cfg:      cfg,
		log:      cfg.Logger,
		sessions: map[uuid.UUID]*Session{},
	}
}

// Create opens a session. With a project id the stored document is loaded
// and its score shown; otherwise YAMLContent (possibly empty) is used.
func (m *SessionManager) Create(ctx context.Context, opts SessionOptions) (*Session, error) {
	content := opts.YAMLContent
	score := opts.Score
	theme := opts.Theme
	if opts.ProjectID != "" {
		if m.projects == nil {
			return nil, fmt.Errorf("load project %s: %w", opts.ProjectID, domain.ErrServiceUnavailable)
		}
		doc, err := m.projects.LoadProject(ctx, opts.ProjectID, opts.Token)
		if err != nil {
			return nil, fmt.Errorf("load project %s: %w", opts.ProjectID, err)
		}
		content = doc.YAMLContent
		if theme == "" {
			if t, err := model.ParseTheme(doc.Theme); err == nil {
				theme = t
			}
		}
		if doc.ATSScore != nil {
			score = doc.ATSScore
		}
	}

	id := uuid.New()
	log := m.log.With("session", id.String())
	syncCfg, pipeCfg := m.cfg.Sync, m.cfg.Pipeline
	syncCfg.Logger, pipeCfg.Logger = log, log

	s := &Session{
		ID:            id,
		CreatedAt:     time.Now(),
		Sync:          NewSynchronizer(syncCfg),
		Pipeline:      NewPipeline(m.renderer, pipeCfg),
		Stepper:       NewStepper(),
		projectID:     opts.ProjectID,
		token:         opts.Token,
		jdPath:        opts.JobDescriptionPath,
		jobRole:       opts.JobRole,
		targetCompany: opts.TargetCompany,
		scoring:       m.scoring,
	}
	s.Sync.Load(content)
	if theme != "" {
		s.Sync.SetTheme(theme)
	}
	s.Pipeline.SeedScores(score, opts.OriginalScore)
	s.mu.Lock()
	s.bindScorerLocked()
	s.mu.Unlock()

	// Every raw change from here on feeds the debounced render; a theme
	// picked up from design.theme renders at once.
	s.Sync.OnRawChange(s.Pipeline.ContentChanged)
	s.Sync.OnThemeChange(s.Pipeline.SetTheme)
	s.Pipeline.Mount(s.Sync.Raw(), s.Sync.Theme())

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	log.Info("session created", "project", opts.ProjectID, "bytes", len(content))
	return s, nil
}

// CreateFromAnalysis sends an uploaded resume to the analysis service and
// opens a session on the generated document.
func (m *SessionManager) CreateFromAnalysis(ctx context.Context, token string, req domain.AnalysisRequest) (*Session, *domain.AnalysisResult, error) {
	if m.analyzer == nil {
		return nil, nil, fmt.Errorf("analyze resume: %w", domain.ErrServiceUnavailable)
	}
	res, err := m.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze resume: %w", err)
	}
	s, err := m.Create(ctx, SessionOptions{
		Token:              token,
		YAMLContent:        res.YAMLContent,
		JobDescriptionPath: res.JobDescriptionPath,
		JobRole:            req.JobRole,
		TargetCompany:      req.TargetCompany,
		Score:              res.ATSScore,
		OriginalScore:      res.OriginalATSScore,
	})
	if err != nil {
		return nil, nil, err
	}
	// The analysis already stored a project; adopt it so saves update it.
	if res.ProjectID != "" {
		s.mu.Lock()
		s.projectID = res.ProjectID
		s.bindScorerLocked()
		s.mu.Unlock()
	}
	return s, res, nil
}

func (m *SessionManager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// Delete closes and forgets a session.
func (m *SessionManager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	s.close()
	return nil
}

// Save stores the session's raw text and selected theme. Sessions without a
// project create one when the user is signed in.
func (m *SessionManager) Save(ctx context.Context, s *Session) (string, error) {
	if m.projects == nil {
		return "", fmt.Errorf("save project: %w", domain.ErrServiceUnavailable)
	}
	raw := s.Sync.Raw()
	theme := string(s.Sync.Theme())

	s.mu.Lock()
	projectID, token := s.projectID, s.token
	jobRole, company := s.jobRole, s.targetCompany
	s.mu.Unlock()

	if projectID != "" {
		doc := domain.ProjectDocument{YAMLContent: raw, Theme: theme}
		if err := m.projects.SaveProject(ctx, projectID, doc, token); err != nil {
			return "", fmt.Errorf("save project %s: %w", projectID, err)
		}
		return projectID, nil
	}
	if token == "" {
		return "", fmt.Errorf("save project: %w", domain.ErrUnauthorized)
	}

	id, err := m.projects.CreateProject(ctx, domain.Project{
		JobRole:       jobRole,
		TargetCompany: company,
		YAMLContent:   raw,
		Theme:         theme,
	}, token)
	if err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}
	s.mu.Lock()
	s.projectID = id
	s.bindScorerLocked()
	s.mu.Unlock()
	m.log.Info("project created", "session", s.ID.String(), "project", id)
	return id, nil
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes every session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[uuid.UUID]*Session{}
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// IsClientError reports errors caused by the request rather than the
// service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrFormInactive) ||
		errors.Is(err, ErrStepIncomplete) ||
		errors.Is(err, ErrStepOutOfRange) ||
		errors.Is(err, ErrFinalized)
}
