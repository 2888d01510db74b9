package migration

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
)

// RunMigrations executes all necessary database migrations on startup
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("Starting database migrations")

	for _, m := range Migrations {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			slog.Error("Migration failed", "name", m.Name, "error", err)
			return err
		}
		slog.Info("Migration completed", "name", m.Name)
	}

	slog.Info("All migrations completed successfully")
	return nil
}

// Migration represents a database migration
type Migration struct {
	Name string
	SQL  string
}

// Migrations are applied in order; each one must be safe to run again.
var Migrations = []Migration{
	{
		Name: "create_resume_projects",
		SQL: `
		CREATE TABLE IF NOT EXISTS resume_projects (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			job_role TEXT NOT NULL DEFAULT '',
			target_company TEXT NOT NULL DEFAULT '',
			yaml_content TEXT NOT NULL,
			theme TEXT NOT NULL DEFAULT '',
			ats_score DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	},
	{
		Name: "index_resume_projects_user",
		SQL: `
		CREATE INDEX IF NOT EXISTS resume_projects_user_id_idx
		ON resume_projects (user_id, updated_at DESC);`,
	},
}
