package sync

import (
	"context"
	"errors"
	"log/slog"

	"groupsync/internal/domain"
)

// Expander flattens nested group membership into user and device leaves.
type Expander struct {
	dir    domain.DirectoryReader
	caches *RunCaches
	logger *slog.Logger
}

func NewExpander(dir domain.DirectoryReader, caches *RunCaches, logger *slog.Logger) *Expander {
	return &Expander{dir: dir, caches: caches, logger: logger}
}

// Expand walks groupID and every group nested beneath it, returning the
// deduplicated leaf principals. Traversal is iterative over a work queue
// rather than recursive, so graph depth never threatens the stack. The
// visited set is owned by the caller: sibling expansions within one run may
// share it to skip subgroups already walked, and a group encountered twice
// (cycle or diamond) is skipped with a diagnostic instead of failing the
// run.
func (e *Expander) Expand(ctx context.Context, groupID string, visited map[string]bool) ([]domain.DirectoryPrincipal, error) {
	var leaves []domain.DirectoryPrincipal
	seen := make(map[string]bool)
	queue := []string{groupID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			e.logger.Debug("group already expanded, skipping", "group_id", current)
			continue
		}
		visited[current] = true

		members, err := e.directMembers(ctx, current)
		if err != nil {
			var nf *domain.NotFoundError
			if errors.As(err, &nf) {
				e.logger.Warn("group vanished during expansion, skipping", "group_id", current)
				continue
			}
			return nil, err
		}

		for _, member := range members {
			switch member.Kind {
			case domain.KindGroup:
				queue = append(queue, member.ID)
			case domain.KindUser, domain.KindDevice:
				if seen[member.ID] {
					continue
				}
				seen[member.ID] = true
				leaves = append(leaves, member)
			}
		}
	}

	return leaves, nil
}

func (e *Expander) directMembers(ctx context.Context, groupID string) ([]domain.DirectoryPrincipal, error) {
	if members, ok := e.caches.groupMembers(groupID); ok {
		return members, nil
	}
	members, err := e.dir.GetGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	e.caches.storeGroupMembers(groupID, members)
	return members, nil
}
