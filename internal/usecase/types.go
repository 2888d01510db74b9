package usecase

import (
	"context"
	"sync"
	"time"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"

	"github.com/google/uuid"
)

// Renderer turns serialized document text plus a theme into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, yamlContent string, theme model.Theme) ([]byte, error)
}

// Scorer computes a 0-100 compatibility score for a rendered artifact. The
// job description it scores against is bound when the scorer is built.
type Scorer interface {
	Score(ctx context.Context, pdf []byte, yamlContent string) (float64, error)
}

// ScoringBackend is the analysis service's scoring surface.
type ScoringBackend interface {
	ScoreWithStoredJD(ctx context.Context, pdf []byte, jobDescriptionPath string) (float64, error)
	ScoreProject(ctx context.Context, projectID, yamlContent, token string) (float64, error)
}

// ProjectStore persists serialized documents.
type ProjectStore interface {
	LoadProject(ctx context.Context, projectID, token string) (*domain.ProjectDocument, error)
	SaveProject(ctx context.Context, projectID string, doc domain.ProjectDocument, token string) error
	CreateProject(ctx context.Context, p domain.Project, token string) (string, error)
}

// Analyzer generates a tailored document from an uploaded resume.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// Artifact is one preview PDF held by a pipeline. Data must not be used
// after Release.
type Artifact struct {
	ID          uuid.UUID
	Placeholder bool
	CreatedAt   time.Time

	mu       sync.Mutex
	data     []byte
	released bool
}

func newArtifact(data []byte, placeholder bool) *Artifact {
	return &Artifact{ID: uuid.New(), Placeholder: placeholder, CreatedAt: time.Now(), data: data}
}

// Bytes returns the PDF, or nil once released.
func (a *Artifact) Bytes() []byte {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

// Release drops the artifact's buffer. It is safe to call more than once.
func (a *Artifact) Release() {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.data = nil
	a.released = true
	a.mu.Unlock()
}

// Released reports whether Release was called.
func (a *Artifact) Released() bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

type RenderStatus string

const (
	RenderIdle      RenderStatus = "idle"
	RenderPending   RenderStatus = "pending"
	RenderSucceeded RenderStatus = "success"
	RenderFailed    RenderStatus = "error"
)

// ScoreStatus keeps "no score yet" apart from a real score of 0.
type ScoreStatus string

const (
	ScoreNone        ScoreStatus = "none"
	ScorePending     ScoreStatus = "pending"
	ScoreAvailable   ScoreStatus = "available"
	ScoreUnavailable ScoreStatus = "unavailable"
)

// PreviewState is the render result shown in the preview pane.
type PreviewState struct {
	Status        RenderStatus `json:"status"`
	ArtifactID    string       `json:"artifactId,omitempty"`
	Placeholder   bool         `json:"placeholder"`
	ErrorMessage  string       `json:"errorMessage,omitempty"`
	Score         *float64     `json:"score"`
	ScoreStatus   ScoreStatus  `json:"scoreStatus"`
	OriginalScore *float64     `json:"originalScore,omitempty"`
	AutoRender    bool         `json:"autoRender"`
	Theme         model.Theme  `json:"theme"`
	Renders       uint64       `json:"renders"`
	RenderedAt    *time.Time   `json:"renderedAt,omitempty"`
}
