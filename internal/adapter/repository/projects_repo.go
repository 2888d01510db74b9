package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alpha-resume/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProjectsRepo stores projects in Postgres. Bearer tokens are treated as
// opaque owner keys; only their SHA-256 is stored.
type ProjectsRepo struct {
	pool *pgxpool.Pool
}

func NewProjectsRepo(pool *pgxpool.Pool) *ProjectsRepo {
	return &ProjectsRepo{pool: pool}
}

func ownerKey(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// LoadProject returns the stored document. Projects created with a token can
// only be read with the same token.
func (r *ProjectsRepo) LoadProject(ctx context.Context, projectID, token string) (*domain.ProjectDocument, error) {
	id, err := uuid.Parse(projectID)
	if err != nil {
		return nil, fmt.Errorf("project %q: %w", projectID, domain.ErrNotFound)
	}

	var owner string
	var doc domain.ProjectDocument
	err = r.pool.QueryRow(ctx, `SELECT user_id, yaml_content, theme, ats_score FROM resume_projects WHERE id = $1`, id).
		Scan(&owner, &doc.YAMLContent, &doc.Theme, &doc.ATSScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if owner != "" && owner != ownerKey(token) {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrUnauthorized)
	}
	return &doc, nil
}

func (r *ProjectsRepo) SaveProject(ctx context.Context, projectID string, doc domain.ProjectDocument, token string) error {
	if _, err := r.LoadProject(ctx, projectID, token); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE resume_projects SET yaml_content = $2, theme = $3, updated_at = $4 WHERE id = $1`,
		uuid.MustParse(projectID), doc.YAMLContent, doc.Theme, time.Now())
	return err
}

func (r *ProjectsRepo) CreateProject(ctx context.Context, p domain.Project, token string) (string, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `INSERT INTO resume_projects (id, user_id, job_role, target_company, yaml_content, theme, ats_score, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, ownerKey(token), p.JobRole, p.TargetCompany, p.YAMLContent, p.Theme, p.ATSScore, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return "", err
	}
	return p.ID.String(), nil
}

// ListProjects returns the token owner's projects, newest first.
func (r *ProjectsRepo) ListProjects(ctx context.Context, token string) ([]domain.Project, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT coalesce(json_agg(row_to_json(p) ORDER BY p.updated_at DESC), '[]')
		FROM (SELECT id, job_role, target_company, yaml_content, theme, ats_score, created_at, updated_at
		      FROM resume_projects WHERE user_id = $1) p`, ownerKey(token)).Scan(&raw)
	if err != nil {
		return nil, err
	}
	var out []domain.Project
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return out, nil
}
