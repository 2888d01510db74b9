// Package metrics exposes render and session counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"time"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"
	"alpha-resume/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	scores         *prometheus.CounterVec
}

// New registers the collectors. sessions is sampled on every scrape; it may
// be nil.
func New(sessions func() int) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alpha",
			Name:      "renders_total",
			Help:      "Renderer calls by theme and outcome.",
		}, []string{"theme", "outcome"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alpha",
			Name:      "render_duration_seconds",
			Help:      "Renderer call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"theme"}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alpha",
			Name:      "scores_total",
			Help:      "Scoring calls by outcome.",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(m.renders, m.renderDuration, m.scores)
	if sessions != nil {
		m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "alpha",
			Name:      "sessions_active",
			Help:      "Open editing sessions.",
		}, func() float64 { return float64(sessions()) }))
	}
	return m
}

// Outcome names an error for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, domain.ErrNoOutput):
		return "no_output"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrRendererFailed):
		return "renderer_failed"
	}
	return "error"
}

type renderer struct {
	next usecase.Renderer
	m    *Metrics
}

// Renderer counts and times every call to r.
func (m *Metrics) Renderer(r usecase.Renderer) usecase.Renderer {
	return &renderer{next: r, m: m}
}

func (r *renderer) Render(ctx context.Context, yamlContent string, theme model.Theme) ([]byte, error) {
	start := time.Now()
	pdf, err := r.next.Render(ctx, yamlContent, theme)
	label := string(theme.OrDefault())
	r.m.renderDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	r.m.renders.WithLabelValues(label, Outcome(err)).Inc()
	return pdf, err
}

type scoring struct {
	next usecase.ScoringBackend
	m    *Metrics
}

// Scoring counts every scoring call made through b.
func (m *Metrics) Scoring(b usecase.ScoringBackend) usecase.ScoringBackend {
	return &scoring{next: b, m: m}
}

func (s *scoring) ScoreWithStoredJD(ctx context.Context, pdf []byte, path string) (float64, error) {
	v, err := s.next.ScoreWithStoredJD(ctx, pdf, path)
	s.m.scores.WithLabelValues(Outcome(err)).Inc()
	return v, err
}

func (s *scoring) ScoreProject(ctx context.Context, projectID, yamlContent, token string) (float64, error) {
	v, err := s.next.ScoreProject(ctx, projectID, yamlContent, token)
	s.m.scores.WithLabelValues(Outcome(err)).Inc()
	return v, err
}
