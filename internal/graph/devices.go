package graph

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"groupsync/internal/domain"
)

const managedDevicesEndpoint = "deviceManagement/managedDevices"

const deviceSelect = "id,deviceName,operatingSystem,osVersion,userId"

// ListManagedDevices lists the device inventory. The query narrows the
// listing server-side where the API supports it (platform equality, exact
// version equality or inequality); every other comparison is the caller's
// client-side job.
func (c *Client) ListManagedDevices(ctx context.Context, q *domain.DeviceQuery) ([]domain.ManagedDevice, error) {
	query := url.Values{}
	query.Set("$select", deviceSelect)
	if clause := deviceFilterClause(q); clause != "" {
		query.Set("$filter", clause)
	}

	rows, err := listAll[managedDevice](ctx, c, managedDevicesEndpoint, query)
	if err != nil {
		return nil, fmt.Errorf("list managed devices: %w", err)
	}

	devices := make([]domain.ManagedDevice, 0, len(rows))
	for _, r := range rows {
		devices = append(devices, r.toDomain())
	}
	return devices, nil
}

// GetDeviceByName resolves a managed device by its inventory device name.
// First match wins; device names are not guaranteed unique.
func (c *Client) GetDeviceByName(ctx context.Context, name string) (*domain.ManagedDevice, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("deviceName eq '%s'", escapeFilterValue(name)))
	query.Set("$select", deviceSelect)

	rows, err := listAll[managedDevice](ctx, c, managedDevicesEndpoint, query)
	if err != nil {
		return nil, fmt.Errorf("look up device %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound("device %q not found in inventory", name)
	}
	d := rows[0].toDomain()
	return &d, nil
}

func deviceFilterClause(q *domain.DeviceQuery) string {
	if q == nil {
		return ""
	}
	var clauses []string
	if q.Platform != "" {
		clauses = append(clauses, fmt.Sprintf("operatingSystem eq '%s'", escapeFilterValue(string(q.Platform))))
	}
	if q.OSVersion != "" {
		op := "eq"
		if q.VersionNE {
			op = "ne"
		}
		clauses = append(clauses, fmt.Sprintf("osVersion %s '%s'", op, escapeFilterValue(q.OSVersion)))
	}
	return strings.Join(clauses, " and ")
}
