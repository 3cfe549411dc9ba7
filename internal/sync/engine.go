// Package sync implements the group-resolution and synchronization engine:
// nested group expansion, device/user cross-referencing, version filtering,
// and idempotent target-group membership sync.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"groupsync/internal/domain"
)

// Options selects what a run resolves and how the target group is brought
// in line with the result.
type Options struct {
	// SourceGroups are the display names of the groups to expand. Empty
	// means org-wide mode: the whole device inventory is the source.
	SourceGroups []string

	// TargetGroupID wins over TargetGroupName when both are set.
	TargetGroupName string
	TargetGroupID   string

	Mode       domain.AddMode
	Filters    FilterSet
	ClearFirst bool
	DryRun     bool

	// Limit caps the matched devices for staged rollouts. Zero is no cap.
	Limit int
}

func (o Options) validateTarget() error {
	if o.TargetGroupID == "" && o.TargetGroupName == "" {
		return domain.ErrValidation("a target group name or id is required")
	}
	switch o.Mode {
	case domain.AddUsers, domain.AddDevices, domain.AddBoth:
		return nil
	default:
		return domain.ErrValidation("invalid add mode %q: use users, devices, or both", o.Mode)
	}
}

// Engine wires the resolve, plan, and apply stages together, one run at a
// time. It keeps no state between runs; every call starts with fresh
// caches.
type Engine struct {
	dir    domain.Directory
	store  domain.RunStore
	logger *slog.Logger
}

// NewEngine builds an engine over the directory. store may be nil to skip
// run-history persistence.
func NewEngine(dir domain.Directory, store domain.RunStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{dir: dir, store: store, logger: logger}
}

// Resolve computes the matched device set without touching any target
// group.
func (e *Engine) Resolve(ctx context.Context, opts Options) ([]domain.MatchedDevice, error) {
	return e.resolve(ctx, opts, NewRunCaches())
}

// Plan resolves the candidate set and computes the membership changes for
// the target group without applying them.
func (e *Engine) Plan(ctx context.Context, opts Options) (*domain.SyncPlan, error) {
	plan, _, err := e.plan(ctx, opts, NewRunCaches())
	return plan, err
}

// Expand flattens one group's nested membership, resolving the name first.
func (e *Engine) Expand(ctx context.Context, groupName string) ([]domain.DirectoryPrincipal, error) {
	group, err := e.dir.GetGroupByName(ctx, groupName)
	if err != nil {
		return nil, err
	}
	caches := NewRunCaches()
	expander := NewExpander(e.dir, caches, e.logger)
	return expander.Expand(ctx, group.ID, make(map[string]bool))
}

// Run executes a full synchronization: resolve, plan, apply, report. The
// report is persisted when a store is configured, including partial reports
// from aborted runs.
func (e *Engine) Run(ctx context.Context, opts Options) (*domain.SyncReport, error) {
	plan, _, err := e.plan(ctx, opts, NewRunCaches())
	if err != nil {
		return nil, err
	}
	return e.Apply(ctx, plan, opts)
}

// Apply executes a previously computed plan. Callers that show the plan for
// confirmation first use Plan followed by Apply; the membership read is not
// repeated, so a directory change in between applies the stale plan.
func (e *Engine) Apply(ctx context.Context, plan *domain.SyncPlan, opts Options) (*domain.SyncReport, error) {
	if !plan.HasChanges() {
		e.logger.Info("nothing to synchronize", "target", plan.TargetGroupName)
	}

	synchronizer := NewSynchronizer(e.dir, e.logger)
	report, applyErr := synchronizer.Apply(ctx, plan, opts.ClearFirst, opts.DryRun)
	if report != nil {
		e.saveReport(ctx, report)
		e.logger.Info("run complete",
			"run_id", report.RunID,
			"target", report.TargetGroup,
			"dry_run", report.DryRun,
			"added", report.Added,
			"already_member", report.AlreadyMember,
			"removed", report.Removed,
			"failed", report.Failed,
		)
	}
	return report, applyErr
}

func (e *Engine) resolve(ctx context.Context, opts Options, caches *RunCaches) ([]domain.MatchedDevice, error) {
	filter := NewDeviceFilter(opts.Filters, e.logger)
	resolver := NewResolver(e.dir, caches, filter, e.logger)

	matches, err := resolver.Resolve(ctx, opts.SourceGroups)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(matches) > opts.Limit {
		e.logger.Info("capping matched devices", "matched", len(matches), "limit", opts.Limit)
		matches = matches[:opts.Limit]
	}

	e.logger.Info("resolved candidate devices",
		"matched", len(matches),
		"org_wide", len(opts.SourceGroups) == 0,
	)
	return matches, nil
}

// plan resolves the target group before anything else so a bad target fails
// fast, then computes matches and the membership plan over shared caches.
func (e *Engine) plan(ctx context.Context, opts Options, caches *RunCaches) (*domain.SyncPlan, []domain.MatchedDevice, error) {
	if err := opts.validateTarget(); err != nil {
		return nil, nil, err
	}

	target, err := e.resolveTarget(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	matches, err := e.resolve(ctx, opts, caches)
	if err != nil {
		return nil, nil, err
	}

	lookup := NewUserLookup(e.dir, caches, DefaultLookupBatchSize, e.logger)
	planner := NewPlanner(e.dir, caches, lookup, e.logger)
	plan, err := planner.BuildPlan(ctx, target, matches, opts.Mode, opts.ClearFirst)
	if err != nil {
		return nil, nil, err
	}
	return plan, matches, nil
}

func (e *Engine) resolveTarget(ctx context.Context, opts Options) (*domain.Group, error) {
	if opts.TargetGroupID != "" {
		group, err := e.dir.GetGroup(ctx, opts.TargetGroupID)
		if err != nil {
			return nil, fmt.Errorf("resolve target group %s: %w", opts.TargetGroupID, err)
		}
		return group, nil
	}

	group, err := e.dir.GetGroupByName(ctx, opts.TargetGroupName)
	if err != nil {
		return nil, fmt.Errorf("resolve target group %q: %w", opts.TargetGroupName, err)
	}
	return group, nil
}

func (e *Engine) saveReport(ctx context.Context, report *domain.SyncReport) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveReport(ctx, report); err != nil {
		e.logger.Warn("could not persist run report", "run_id", report.RunID, "error", err)
	}
}
