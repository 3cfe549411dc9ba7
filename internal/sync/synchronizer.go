package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"groupsync/internal/domain"
)

// Synchronizer applies a SyncPlan to the directory member by member.
type Synchronizer struct {
	dir    domain.Directory
	logger *slog.Logger
	now    func() time.Time
}

func NewSynchronizer(dir domain.Directory, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{dir: dir, logger: logger, now: time.Now}
}

// Apply executes the plan. Removals run to completion before any addition
// begins, so a pending removal can never race an add of the same principal.
// Each member succeeds or fails on its own; only a fatal error aborts the
// rest, and the report returned alongside it still covers everything
// processed up to that point. A dry run records the exact would-be outcomes
// without issuing a single mutation.
func (s *Synchronizer) Apply(ctx context.Context, plan *domain.SyncPlan, clearFirst, dryRun bool) (*domain.SyncReport, error) {
	report := &domain.SyncReport{
		RunID:       uuid.NewString(),
		TargetGroup: plan.TargetGroupName,
		DryRun:      dryRun,
		ClearFirst:  clearFirst,
		StartedAt:   s.now(),
	}
	defer func() { report.FinishedAt = s.now() }()

	existing, err := s.existingMembers(ctx, plan, clearFirst, dryRun)
	if err != nil {
		return report, err
	}

	if err := s.removeMembers(ctx, report, plan, dryRun); err != nil {
		return report, err
	}
	if err := s.addMembers(ctx, report, plan, existing, dryRun); err != nil {
		return report, err
	}

	return report, nil
}

// existingMembers is only needed to classify dry-run additions when the
// group is not being cleared; a real run learns the same thing from the
// directory's already-exists answer, and a cleared group would accept every
// addition.
func (s *Synchronizer) existingMembers(ctx context.Context, plan *domain.SyncPlan, clearFirst, dryRun bool) (map[string]bool, error) {
	if !dryRun || clearFirst {
		return nil, nil
	}

	current, err := s.dir.GetGroupMembers(ctx, plan.TargetGroupID)
	if err != nil {
		return nil, fmt.Errorf("read current members of target group %q: %w", plan.TargetGroupName, err)
	}

	existing := make(map[string]bool, len(current))
	for _, member := range current {
		existing[member.ID] = true
	}
	return existing, nil
}

func (s *Synchronizer) removeMembers(ctx context.Context, report *domain.SyncReport, plan *domain.SyncPlan, dryRun bool) error {
	for _, member := range plan.ToRemove {
		result := domain.MemberResult{
			PrincipalID: member.ID,
			DisplayName: member.DisplayName,
			Operation:   domain.OpRemove,
			Outcome:     domain.OutcomeRemoved,
		}

		if dryRun {
			report.Record(result)
			continue
		}

		err := s.dir.RemoveGroupMember(ctx, plan.TargetGroupID, member.ID)
		if err != nil {
			result.Outcome = domain.OutcomeFailed
			result.Error = err.Error()
		}
		report.Record(result)

		if err != nil {
			if isFatal(err) {
				return err
			}
			s.logger.Warn("could not remove member",
				"group", plan.TargetGroupName,
				"member", member.DisplayName,
				"error", err,
			)
		}
	}
	return nil
}

func (s *Synchronizer) addMembers(ctx context.Context, report *domain.SyncReport, plan *domain.SyncPlan, existing map[string]bool, dryRun bool) error {
	for _, member := range plan.ToAdd {
		result := domain.MemberResult{
			PrincipalID: member.ID,
			DisplayName: member.DisplayName,
			Operation:   domain.OpAdd,
			Outcome:     domain.OutcomeAdded,
		}

		if dryRun {
			if existing[member.ID] {
				result.Outcome = domain.OutcomeAlreadyMember
			}
			report.Record(result)
			continue
		}

		err := s.dir.AddGroupMember(ctx, plan.TargetGroupID, member.ID)
		var dup *domain.AlreadyMemberError
		switch {
		case err == nil:
		case errors.As(err, &dup):
			result.Outcome = domain.OutcomeAlreadyMember
			err = nil
		default:
			result.Outcome = domain.OutcomeFailed
			result.Error = err.Error()
		}
		report.Record(result)

		if err != nil {
			if isFatal(err) {
				return err
			}
			s.logger.Warn("could not add member",
				"group", plan.TargetGroupName,
				"member", member.DisplayName,
				"error", err,
			)
		}
	}
	return nil
}
