package sync

import (
	"context"
	"log/slog"

	"groupsync/internal/domain"
)

// DefaultLookupBatchSize matches the directory's cap on OR-combined filter
// clauses per request.
const DefaultLookupBatchSize = 15

// UserLookup resolves user ids to records in bounded batches, memoizing
// results in the run caches so an id is fetched at most once per run.
type UserLookup struct {
	dir       domain.DirectoryReader
	caches    *RunCaches
	batchSize int
	logger    *slog.Logger
}

func NewUserLookup(dir domain.DirectoryReader, caches *RunCaches, batchSize int, logger *slog.Logger) *UserLookup {
	if batchSize <= 0 {
		batchSize = DefaultLookupBatchSize
	}
	return &UserLookup{dir: dir, caches: caches, batchSize: batchSize, logger: logger}
}

// ResolveUsers deduplicates ids and resolves the ones not already cached,
// batch by batch. A failed batch is logged and skipped so one bad request
// cannot sink the others; ids it covered are simply absent from the result
// and callers treat them as unknown.
func (l *UserLookup) ResolveUsers(ctx context.Context, ids []string) map[string]domain.UserRecord {
	resolved := make(map[string]domain.UserRecord, len(ids))
	seen := make(map[string]bool, len(ids))
	var missing []string

	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if record, ok := l.caches.users[id]; ok {
			resolved[id] = record
			continue
		}
		missing = append(missing, id)
	}

	for start := 0; start < len(missing); start += l.batchSize {
		end := min(start+l.batchSize, len(missing))
		batch := missing[start:end]

		records, err := l.dir.GetUsersByIDs(ctx, batch)
		if err != nil {
			l.logger.Warn("user batch lookup failed, skipping batch",
				"batch_size", len(batch),
				"error", err,
			)
			continue
		}
		for _, record := range records {
			l.caches.users[record.ID] = record
			resolved[record.ID] = record
		}
	}

	return resolved
}
