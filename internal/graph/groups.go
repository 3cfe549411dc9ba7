package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"groupsync/internal/domain"
)

// GetGroupByName resolves a group by display name. Name lookups are
// best-effort: display names are not unique in the directory and a rename
// mid-run changes the result. The first match wins.
func (c *Client) GetGroupByName(ctx context.Context, name string) (*domain.Group, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("displayName eq '%s'", escapeFilterValue(name)))
	query.Set("$select", "id,displayName")

	groups, err := listAll[group](ctx, c, "groups", query)
	if err != nil {
		return nil, fmt.Errorf("look up group %q: %w", name, err)
	}
	if len(groups) == 0 {
		return nil, domain.ErrNotFound("group %q not found", name)
	}
	return groups[0].toDomain(), nil
}

// GetGroup fetches a group by id.
func (c *Client) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	var g group
	query := url.Values{}
	query.Set("$select", "id,displayName")

	if err := getJSON(ctx, c, path.Join("groups", groupID), query, &g); err != nil {
		if IsNotFound(err) {
			return nil, domain.ErrNotFound("group %s not found", groupID)
		}
		return nil, fmt.Errorf("fetch group %s: %w", groupID, err)
	}
	return g.toDomain(), nil
}

// GetGroupMembers lists the direct members of a group. Member kinds are
// decoded from the type discriminator here and nowhere else; unsupported
// member types are skipped with a debug line.
func (c *Client) GetGroupMembers(ctx context.Context, groupID string) ([]domain.DirectoryPrincipal, error) {
	query := url.Values{}
	query.Set("$select", "id,displayName")

	raw, err := listAll[json.RawMessage](ctx, c, path.Join("groups", groupID, "members"), query)
	if err != nil {
		if IsNotFound(err) {
			return nil, domain.ErrNotFound("group %s not found", groupID)
		}
		return nil, fmt.Errorf("list members of group %s: %w", groupID, err)
	}

	members := make([]domain.DirectoryPrincipal, 0, len(raw))
	for _, entry := range raw {
		m, ok, err := decodeMember(entry)
		if err != nil {
			return nil, fmt.Errorf("decode member of group %s: %w", groupID, err)
		}
		if !ok {
			c.logger.Debug("skipping unsupported member type", "group", groupID)
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

// AddGroupMember adds a principal to a group by directory-object reference.
// An "already exists" answer surfaces as a domain.AlreadyMemberError so
// callers can treat it as success.
func (c *Client) AddGroupMember(ctx context.Context, groupID, principalID string) error {
	body, err := json.Marshal(map[string]string{
		"@odata.id": c.directoryObjectURL(principalID),
	})
	if err != nil {
		return fmt.Errorf("encode member reference: %w", err)
	}

	uri := c.endpointURL(path.Join("groups", groupID, "members", "$ref"), nil)
	resp, err := c.do(ctx, http.MethodPost, uri, body)
	if err != nil {
		if isAlreadyMember(err) {
			return domain.ErrAlreadyMember("principal %s is already a member of group %s", principalID, groupID)
		}
		return fmt.Errorf("add member %s to group %s: %w", principalID, groupID, err)
	}
	_ = resp.Body.Close()
	return nil
}

// RemoveGroupMember removes a principal from a group.
func (c *Client) RemoveGroupMember(ctx context.Context, groupID, principalID string) error {
	uri := c.endpointURL(path.Join("groups", groupID, "members", principalID, "$ref"), nil)
	resp, err := c.do(ctx, http.MethodDelete, uri, nil)
	if err != nil {
		return fmt.Errorf("remove member %s from group %s: %w", principalID, groupID, err)
	}
	_ = resp.Body.Close()
	return nil
}
