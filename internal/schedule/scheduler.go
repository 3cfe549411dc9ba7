// Package schedule runs the sync jobs declared in the jobs file on their
// cron schedules.
package schedule

import (
	"context"
	"log/slog"
	gosync "sync"

	"github.com/robfig/cron/v3"

	"groupsync/internal/config"
	"groupsync/internal/domain"
	"groupsync/internal/osver"
	"groupsync/internal/sync"
)

// Runner executes one sync run. *sync.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, opts sync.Options) (*domain.SyncReport, error)
}

// Archiver persists finished reports outside the history database.
// *report.Uploader satisfies it.
type Archiver interface {
	Upload(ctx context.Context, report *domain.SyncReport) (string, error)
}

// Scheduler manages cron-based sync execution.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	archiver Archiver // nil when report archiving is not configured
	jobsPath string
	logger   *slog.Logger

	mu      gosync.Mutex
	entries map[string]cron.EntryID // job name → cron entry

	// Jobs run one at a time. The directory tolerates concurrent writers,
	// but overlapping runs against the same target group would race each
	// other's clear-then-add sequences.
	runMu gosync.Mutex
}

// NewScheduler creates a scheduler that loads jobs from jobsPath.
func NewScheduler(runner Runner, jobsPath string, archiver Archiver, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		runner:   runner,
		archiver: archiver,
		jobsPath: jobsPath,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start loads the jobs file and starts the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadJobs(); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sync scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop stops the cron scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sync scheduler stopped")
}

// Reload clears all cron entries and reloads the jobs file.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID)

	if err := s.loadJobs(); err != nil {
		return err
	}
	s.logger.Info("sync scheduler reloaded", "jobs", len(s.entries))
	return nil
}

// loadJobs reads the jobs file and adds each job to cron. Callers hold s.mu.
func (s *Scheduler) loadJobs() error {
	jobs, err := config.LoadJobs(s.jobsPath)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		opts, err := jobOptions(job)
		if err != nil {
			s.logger.Warn("skipping job", "job", job.Name, "error", err)
			continue
		}
		name := job.Name

		entryID, err := s.cron.AddFunc(job.Schedule, func() {
			s.runJob(name, opts)
		})
		if err != nil {
			s.logger.Warn("invalid cron schedule",
				"job", name,
				"schedule", job.Schedule,
				"error", err,
			)
			continue
		}

		s.entries[name] = entryID
		s.logger.Info("scheduled sync job", "job", name, "schedule", job.Schedule)
	}

	return nil
}

func (s *Scheduler) runJob(name string, opts sync.Options) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx := context.Background()
	s.logger.Info("scheduled sync starting", "job", name)

	result, err := s.runner.Run(ctx, opts)
	if err != nil {
		s.logger.Warn("scheduled sync failed", "job", name, "error", err)
	}

	// A failed run may still carry a partial report worth archiving.
	if result != nil && s.archiver != nil {
		blob, upErr := s.archiver.Upload(ctx, result)
		if upErr != nil {
			s.logger.Warn("report archive failed", "job", name, "run_id", result.RunID, "error", upErr)
		} else {
			s.logger.Info("report archived", "job", name, "run_id", result.RunID, "blob", blob)
		}
	}

	if err == nil {
		s.logger.Info("scheduled sync finished",
			"job", name,
			"run_id", result.RunID,
			"added", result.Added,
			"already_member", result.AlreadyMember,
			"removed", result.Removed,
			"failed", result.Failed,
		)
	}
}

// jobOptions converts a declared job into engine options. The jobs file is
// validated at load time, so errors here mean the file changed underneath us.
func jobOptions(job config.Job) (sync.Options, error) {
	mode, err := domain.ParseAddMode(job.Mode)
	if err != nil {
		return sync.Options{}, err
	}

	filters := make(sync.FilterSet, len(job.Filters))
	for _, f := range job.Filters {
		platform := domain.ParsePlatform(f.Platform)
		if platform == domain.PlatformOther {
			return sync.Options{}, domain.ErrValidation("unknown platform %q", f.Platform)
		}
		op := osver.OpLT
		if f.Op != "" {
			if op, err = osver.ParseOperator(f.Op); err != nil {
				return sync.Options{}, err
			}
		}
		filters[platform] = sync.Requirement{Version: f.Version, Op: op}
	}

	return sync.Options{
		SourceGroups:    job.SourceGroups,
		TargetGroupName: job.TargetGroup,
		TargetGroupID:   job.TargetID,
		Mode:            mode,
		Filters:         filters,
		ClearFirst:      job.ClearFirst(),
		DryRun:          job.DryRun,
		Limit:           job.Limit,
	}, nil
}
