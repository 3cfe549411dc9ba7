package domain

import "context"

// DirectoryReader is the read side of the directory service. Implementations
// own transport, pagination, and retry mechanics; callers see flat results.
type DirectoryReader interface {
	// GetGroupByName resolves a group by display name. Returns a
	// NotFoundError when no group carries the name.
	GetGroupByName(ctx context.Context, name string) (*Group, error)

	// GetGroup fetches a group by id. Returns a NotFoundError for unknown ids.
	GetGroup(ctx context.Context, groupID string) (*Group, error)

	// GetGroupMembers lists the direct members of a group with their kind
	// already decoded from the directory's type discriminator.
	GetGroupMembers(ctx context.Context, groupID string) ([]DirectoryPrincipal, error)

	// ListManagedDevices lists the device inventory, optionally narrowed
	// server-side by the query. A nil query lists everything.
	ListManagedDevices(ctx context.Context, q *DeviceQuery) ([]ManagedDevice, error)

	// GetUsersByIDs resolves up to one batch of user ids in a single call.
	// Unknown ids are absent from the result, not errors.
	GetUsersByIDs(ctx context.Context, ids []string) ([]UserRecord, error)

	// GetDeviceByName resolves a managed device by its device name. Returns
	// a NotFoundError when the inventory has no such device.
	GetDeviceByName(ctx context.Context, name string) (*ManagedDevice, error)
}

// DirectoryWriter is the write side of the directory service.
type DirectoryWriter interface {
	// AddGroupMember adds a principal to a group. Returns an
	// AlreadyMemberError when the directory reports an existing membership.
	AddGroupMember(ctx context.Context, groupID, principalID string) error

	// RemoveGroupMember removes a principal from a group.
	RemoveGroupMember(ctx context.Context, groupID, principalID string) error
}

// Directory combines both sides of the directory service.
type Directory interface {
	DirectoryReader
	DirectoryWriter
}

// RunStore archives finished sync reports for operators. The engine writes
// reports after each run and never reads them back; runs carry no state
// across invocations.
type RunStore interface {
	SaveReport(ctx context.Context, report *SyncReport) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, runID string) (*SyncReport, error)
}
