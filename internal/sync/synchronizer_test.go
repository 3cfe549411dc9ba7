package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupsync/internal/domain"
)

func testPlan(toRemove, toAdd []domain.DirectoryPrincipal) *domain.SyncPlan {
	return &domain.SyncPlan{
		TargetGroupID:   "g-target",
		TargetGroupName: "All iPhone Users",
		ToRemove:        toRemove,
		ToAdd:           toAdd,
	}
}

func TestSynchronizer_DryRunTouchesNothing(t *testing.T) {
	// Add/Remove stay unwired: any mutation would panic the mock.
	dir := &mockDirectory{}
	synchronizer := NewSynchronizer(dir, testLogger())

	plan := testPlan(
		[]domain.DirectoryPrincipal{userLeaf("u-old", "Old Member"), deviceLeaf("d-old", "OLD-DEVICE")},
		[]domain.DirectoryPrincipal{userLeaf("u-1", "Avery Quinn")},
	)

	report, err := synchronizer.Apply(context.Background(), plan, true, true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Removed)
	assert.Equal(t, 1, report.Added)
	assert.Zero(t, report.AlreadyMember)
	assert.Zero(t, report.Failed)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	// The report names the exact would-be changes.
	require.Len(t, report.Members, 3)
	assert.Equal(t, "u-old", report.Members[0].PrincipalID)
	assert.Equal(t, domain.OutcomeRemoved, report.Members[0].Outcome)
	assert.Equal(t, "u-1", report.Members[2].PrincipalID)
	assert.Equal(t, domain.OutcomeAdded, report.Members[2].Outcome)
}

func TestSynchronizer_DryRunWithoutClearClassifiesExisting(t *testing.T) {
	dir := &mockDirectory{
		GetGroupMembersFunc: func(ctx context.Context, groupID string) ([]domain.DirectoryPrincipal, error) {
			return []domain.DirectoryPrincipal{userLeaf("u-1", "Avery Quinn")}, nil
		},
	}
	synchronizer := NewSynchronizer(dir, testLogger())

	plan := testPlan(nil, []domain.DirectoryPrincipal{
		userLeaf("u-1", "Avery Quinn"),
		userLeaf("u-2", "Sam Reyes"),
	})

	report, err := synchronizer.Apply(context.Background(), plan, false, true)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.AlreadyMember)
	assert.Zero(t, report.Failed)
}

func TestSynchronizer_RemovalsCompleteBeforeAdds(t *testing.T) {
	var ops []string
	dir := &mockDirectory{
		RemoveGroupMemberFunc: func(ctx context.Context, groupID, principalID string) error {
			ops = append(ops, "remove "+principalID)
			return nil
		},
		AddGroupMemberFunc: func(ctx context.Context, groupID, principalID string) error {
			ops = append(ops, "add "+principalID)
			return nil
		},
	}
	synchronizer := NewSynchronizer(dir, testLogger())

	plan := testPlan(
		[]domain.DirectoryPrincipal{userLeaf("u-old1", "Old One"), userLeaf("u-old2", "Old Two")},
		[]domain.DirectoryPrincipal{userLeaf("u-new", "New One")},
	)

	report, err := synchronizer.Apply(context.Background(), plan, true, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"remove u-old1", "remove u-old2", "add u-new"}, ops)
	assert.Equal(t, 2, report.Removed)
	assert.Equal(t, 1, report.Added)
}

func TestSynchronizer_AlreadyMemberIsSuccess(t *testing.T) {
	dir := &mockDirectory{
		AddGroupMemberFunc: func(ctx context.Context, groupID, principalID string) error {
			return domain.ErrAlreadyMember("principal %s is already a member", principalID)
		},
	}
	synchronizer := NewSynchronizer(dir, testLogger())

	plan := testPlan(nil, []domain.DirectoryPrincipal{userLeaf("u-1", "Avery Quinn")})

	report, err := synchronizer.Apply(context.Background(), plan, false, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.AlreadyMember)
	assert.Zero(t, report.Added)
	assert.Zero(t, report.Failed)
	require.Len(t, report.Members, 1)
	assert.Equal(t, domain.OutcomeAlreadyMember, report.Members[0].Outcome)
	assert.Empty(t, report.Members[0].Error)
}

func TestSynchronizer_MemberFailuresDoNotHaltRun(t *testing.T) {
	dir := &mockDirectory{
		AddGroupMemberFunc: func(ctx context.Context, groupID, principalID string) error {
			if principalID == "u-2" {
				return fmt.Errorf("directory hiccup on %s", principalID)
			}
			return nil
		},
	}
	synchronizer := NewSynchronizer(dir, testLogger())

	plan := testPlan(nil, []domain.DirectoryPrincipal{
		userLeaf("u-1", "Avery Quinn"),
		userLeaf("u-2", "Sam Reyes"),
		userLeaf("u-3", "Robin Hale"),
	})

	report, err := synchronizer.Apply(context.Background(), plan, false, false)
	require.NoError(t, err, "per-member failures must not surface as a run error")

	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.OutcomeFailed, report.Members[1].Outcome)
	assert.Contains(t, report.Members[1].Error, "directory hiccup")
}

func TestSynchronizer_RemoveFailureTolerated(t *testing.T) {
	dir := &mockDirectory{
		RemoveGroupMemberFunc: func(ctx context.Context, groupID, principalID string) error {
			if principalID == "u-old1" {
				return errors.New("not a member")
			}
			return nil
		},
		AddGroupMemberFunc: func(ctx context.Context, groupID, principalID string) error {
			return nil
		},
	}
	synchronizer := NewSynchronizer(dir, testLogger())

	plan := testPlan(
		[]domain.DirectoryPrincipal{userLeaf("u-old1", "Old One"), userLeaf("u-old2", "Old Two")},
		[]domain.DirectoryPrincipal{userLeaf("u-new", "New One")},
	)

	report, err := synchronizer.Apply(context.Background(), plan, true, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Added)
}

func TestSynchronizer_AuthFailureAbortsWithPartialReport(t *testing.T) {
	dir := &mockDirectory{
		AddGroupMemberFunc: func(ctx context.Context, groupID, principalID string) error {
			if principalID == "u-2" {
				return domain.ErrAuth("token revoked")
			}
			return nil
		},
	}
	synchronizer := NewSynchronizer(dir, testLogger())

	plan := testPlan(nil, []domain.DirectoryPrincipal{
		userLeaf("u-1", "Avery Quinn"),
		userLeaf("u-2", "Sam Reyes"),
		userLeaf("u-3", "Robin Hale"),
	})

	report, err := synchronizer.Apply(context.Background(), plan, false, false)

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)

	// Everything up to the abort is still reported; u-3 was never tried.
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Members, 2)
	assert.False(t, report.FinishedAt.IsZero())
}
