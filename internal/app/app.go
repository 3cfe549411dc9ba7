// Package app provides application-level wiring for the sync daemon: it
// assembles the directory client, run-history store, sync engine, scheduler,
// and status API from configuration.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"groupsync/internal/api"
	"groupsync/internal/config"
	"groupsync/internal/db/repository"
	"groupsync/internal/graph"
	"groupsync/internal/middleware"
	"groupsync/internal/report"
	"groupsync/internal/schedule"
	"groupsync/internal/sync"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// database handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application. Scheduler and Uploader are nil when
// their configuration is absent; the Router always serves, if only /healthz
// and run history.
type App struct {
	Engine    *sync.Engine
	Runs      *repository.RunRepo
	Scheduler *schedule.Scheduler
	Uploader  *report.Uploader
	Router    http.Handler

	directory *graph.Client
}

// New wires the directory client, engine, and HTTP surface from deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg

	// === Directory client ===
	tokens, err := graph.NewClientSecretProvider(cfg.Graph.TenantID, cfg.Graph.ClientID, cfg.Graph.ClientSecret)
	if err != nil {
		return nil, err
	}
	client, err := graph.NewClient(graph.Config{
		TokenProvider:     tokens,
		BaseURL:           cfg.Graph.BaseURL,
		PageSize:          cfg.Graph.PageSize,
		RequestsPerSecond: cfg.Graph.RequestsPerSecond,
		Burst:             cfg.Graph.Burst,
		Logger:            deps.Logger.With("component", "graph"),
	})
	if err != nil {
		return nil, err
	}

	// === Run history + engine ===
	runs := repository.NewRunRepo(deps.WriteDB, deps.ReadDB)
	eng := sync.NewEngine(client, runs, deps.Logger.With("component", "engine"))

	// === Report upload (optional) ===
	// The client-secret credential doubles as the blob credential; both sides
	// accept any azcore token source.
	var uploader *report.Uploader
	if cfg.ReportContainerURL != "" {
		uploader, err = report.NewUploader(cfg.ReportContainerURL, tokens)
		if err != nil {
			return nil, fmt.Errorf("report uploader: %w", err)
		}
		deps.Logger.Info("report upload enabled", "container", cfg.ReportContainerURL)
	}

	// === Scheduler (optional) ===
	var sched *schedule.Scheduler
	if cfg.JobsFile != "" {
		var archiver schedule.Archiver
		if uploader != nil {
			archiver = uploader
		}
		sched = schedule.NewScheduler(eng, cfg.JobsFile, archiver, deps.Logger.With("component", "scheduler"))
	}

	// === Status API ===
	var validator middleware.JWTValidator
	if cfg.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("jwt validator: %w", err)
		}
		validator = v
	}
	var reloader api.ScheduleReloader
	if sched != nil {
		reloader = sched
	}
	handler := api.NewHandler(runs, cfg.JobsFile, reloader, deps.Logger.With("component", "api"))
	router := api.NewRouter(handler, api.RouterOptions{
		Validator:          validator,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})

	return &App{
		Engine:    eng,
		Runs:      runs,
		Scheduler: sched,
		Uploader:  uploader,
		Router:    router,
		directory: client,
	}, nil
}

// Close releases the directory client's idle connections. Database handles
// belong to main() and are closed there.
func (a *App) Close() {
	a.directory.Close()
}
