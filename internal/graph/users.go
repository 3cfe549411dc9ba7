package graph

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"groupsync/internal/domain"
)

// maxFilterIDs is the directory's cap on OR-combined id clauses per $filter.
const maxFilterIDs = 15

// GetUsersByIDs resolves one batch of user ids with a single OR-filtered
// query. Batching to the filter-clause cap is the caller's job; ids past the
// cap are a validation error. Unknown ids are absent from the result, not
// errors.
func (c *Client) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.UserRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxFilterIDs {
		return nil, domain.ErrValidation("at most %d ids per user lookup, got %d", maxFilterIDs, len(ids))
	}

	clauses := make([]string, len(ids))
	for i, id := range ids {
		clauses[i] = fmt.Sprintf("id eq '%s'", escapeFilterValue(id))
	}

	query := url.Values{}
	query.Set("$filter", strings.Join(clauses, " or "))
	query.Set("$select", "id,displayName,userPrincipalName")

	rows, err := listAll[user](ctx, c, "users", query)
	if err != nil {
		return nil, fmt.Errorf("look up %d users: %w", len(ids), err)
	}

	records := make([]domain.UserRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toDomain())
	}
	return records, nil
}
