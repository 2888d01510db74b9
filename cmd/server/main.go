package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	httpadapter "alpha-resume/internal/adapter/http"
	repo "alpha-resume/internal/adapter/repository"
	"alpha-resume/internal/config"
	"alpha-resume/internal/infrastructure/migration"
	"alpha-resume/internal/metrics"
	"alpha-resume/internal/model"
	"alpha-resume/internal/usecase"
	"alpha-resume/pkg/backend"
	infra "alpha-resume/pkg/infrastructure"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load(nil)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(cfg.BackendURL, cfg.BackendRetries, logger)

	// renderer
	var (
		renderer usecase.Renderer
		watch    *usecase.WatchRegistry
	)
	switch cfg.RenderBackend {
	case config.RenderBackendChromedp:
		renderer = infra.NewChromedpRenderer(cfg.ChromePath, cfg.WorkDir)
	case config.RenderBackendRemote:
		renderer = infra.NewRemoteRenderer(client)
	default:
		rc := infra.NewRenderCVRenderer(cfg.RenderCVBin, cfg.DesignsDir, cfg.WorkDir, logger)
		renderer = rc
		watch = usecase.NewWatchRegistry(filepath.Join(cfg.WorkDir, "alpha-watch"), func(dir string, theme model.Theme) (usecase.WatchProcess, error) {
			w, err := rc.StartWatch(dir, theme)
			if err != nil {
				return nil, err
			}
			return w, nil
		}, logger)
	}

	// project storage
	var (
		projects usecase.ProjectStore = client
		lister   httpadapter.ProjectLister
	)
	if cfg.ProjectStore == config.ProjectStorePostgres {
		pool, err := infra.NewProjectsPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("project database not available, using the analysis service", "error", err)
		} else {
			defer pool.Close()
			if err := migration.RunMigrations(ctx, pool); err != nil {
				logger.Error("migrations failed", "error", err)
				os.Exit(1)
			}
			pr := repo.NewProjectsRepo(pool)
			projects, lister = pr, pr
		}
	}

	var sessions *usecase.SessionManager
	m := metrics.New(func() int { return sessions.Len() })
	renderer = m.Renderer(renderer)

	sessions = usecase.NewSessionManager(renderer, projects, m.Scoring(client), client, usecase.ManagerConfig{
		Sync: usecase.SyncConfig{EditIdle: cfg.FormEditIdle, Settle: cfg.SyncSettle},
		Pipeline: usecase.PipelineConfig{
			Debounce:      cfg.RenderDebounce,
			RenderTimeout: cfg.RenderTimeout,
			AutoRender:    true,
		},
		Logger: logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               "alpha-resume",
		BodyLimit:             16 << 20,
		DisableStartupMessage: true,
	})
	h := httpadapter.NewHandler(httpadapter.Options{
		Renderer:      renderer,
		Sessions:      sessions,
		Watch:         watch,
		Health:        client,
		Projects:      lister,
		RenderBackend: cfg.RenderBackend,
		RenderTimeout: cfg.RenderTimeout,
		Logger:        logger,
	})
	h.Register(app)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	go func() {
		logger.Info("server listening", "port", cfg.Port, "renderBackend", cfg.RenderBackend, "projectStore", cfg.ProjectStore)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if watch != nil {
		watch.Close()
	}
	sessions.Close()
}
