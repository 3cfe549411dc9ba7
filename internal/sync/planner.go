package sync

import (
	"context"
	"fmt"
	"log/slog"

	"groupsync/internal/domain"
)

// unknownDisplayName labels principals whose record the directory could not
// return; membership changes still proceed by id.
const unknownDisplayName = "Unknown"

// Planner turns matched devices into the concrete membership plan for the
// target group.
type Planner struct {
	dir    domain.DirectoryReader
	caches *RunCaches
	lookup *UserLookup
	logger *slog.Logger
}

func NewPlanner(dir domain.DirectoryReader, caches *RunCaches, lookup *UserLookup, logger *slog.Logger) *Planner {
	return &Planner{dir: dir, caches: caches, lookup: lookup, logger: logger}
}

// BuildPlan computes what a sync would apply: the principals to add for the
// requested mode, and the current target members to remove when clearFirst
// is set. Reading the target's current membership is the one step here that
// is fatal on failure; a group that cannot be cleared safely cannot be
// synced.
func (p *Planner) BuildPlan(ctx context.Context, target *domain.Group, matches []domain.MatchedDevice, mode domain.AddMode, clearFirst bool) (*domain.SyncPlan, error) {
	plan := &domain.SyncPlan{
		TargetGroupID:   target.ID,
		TargetGroupName: target.DisplayName,
	}

	if clearFirst {
		current, err := p.dir.GetGroupMembers(ctx, target.ID)
		if err != nil {
			return nil, fmt.Errorf("read current members of target group %q: %w", target.DisplayName, err)
		}
		plan.ToRemove = current
	}

	if mode == domain.AddUsers || mode == domain.AddBoth {
		plan.ToAdd = append(plan.ToAdd, p.userPrincipals(ctx, matches)...)
	}
	if mode == domain.AddDevices || mode == domain.AddBoth {
		devices, err := p.devicePrincipals(ctx, matches)
		if err != nil {
			return nil, err
		}
		plan.ToAdd = append(plan.ToAdd, devices...)
	}

	return plan, nil
}

// userPrincipals maps matched devices to their owning users, deduplicated
// by user id. Owners the lookup cannot resolve are still added by id with a
// placeholder display name; ownerless devices contribute nothing.
func (p *Planner) userPrincipals(ctx context.Context, matches []domain.MatchedDevice) []domain.DirectoryPrincipal {
	ownerIDs := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.OwnerUserID == "" {
			p.logger.Warn("device has no owning user, nothing to add for it", "device", match.Name)
			continue
		}
		ownerIDs = append(ownerIDs, match.OwnerUserID)
	}

	users := p.lookup.ResolveUsers(ctx, ownerIDs)

	principals := make([]domain.DirectoryPrincipal, 0, len(ownerIDs))
	seen := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		displayName := unknownDisplayName
		if record, ok := users[id]; ok {
			displayName = record.DisplayName
		}
		principals = append(principals, domain.DirectoryPrincipal{
			ID:          id,
			DisplayName: displayName,
			Kind:        domain.KindUser,
		})
	}
	return principals
}

// devicePrincipals resolves each matched device back to its directory
// record for a group-addable id. A record that has gone missing since the
// match is logged and skipped.
func (p *Planner) devicePrincipals(ctx context.Context, matches []domain.MatchedDevice) ([]domain.DirectoryPrincipal, error) {
	principals := make([]domain.DirectoryPrincipal, 0, len(matches))
	for _, match := range matches {
		device, err := lookupDeviceRecord(ctx, p.dir, p.caches, match.Name)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			p.logger.Warn("device record lookup failed, cannot add",
				"device", match.Name,
				"error", err,
			)
			continue
		}
		principals = append(principals, domain.DirectoryPrincipal{
			ID:          device.ID,
			DisplayName: device.DeviceName,
			Kind:        domain.KindDevice,
		})
	}
	return principals, nil
}
