package sync

import (
	"context"
	"errors"

	"groupsync/internal/domain"
)

// isFatal reports errors that must abort the whole run instead of degrading
// to a per-item warning: authentication rejections and context cancellation.
// Target-group resolution failures are handled separately by the engine.
func isFatal(err error) bool {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
