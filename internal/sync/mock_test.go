package sync

import (
	"context"
	"io"
	"log/slog"

	"groupsync/internal/domain"
)

// mockDirectory implements domain.Directory with function fields so each
// test wires exactly the calls it expects. Calling an unwired method is a
// test bug and panics.
type mockDirectory struct {
	GetGroupByNameFunc     func(ctx context.Context, name string) (*domain.Group, error)
	GetGroupFunc           func(ctx context.Context, groupID string) (*domain.Group, error)
	GetGroupMembersFunc    func(ctx context.Context, groupID string) ([]domain.DirectoryPrincipal, error)
	ListManagedDevicesFunc func(ctx context.Context, q *domain.DeviceQuery) ([]domain.ManagedDevice, error)
	GetUsersByIDsFunc      func(ctx context.Context, ids []string) ([]domain.UserRecord, error)
	GetDeviceByNameFunc    func(ctx context.Context, name string) (*domain.ManagedDevice, error)
	AddGroupMemberFunc     func(ctx context.Context, groupID, principalID string) error
	RemoveGroupMemberFunc  func(ctx context.Context, groupID, principalID string) error
}

var _ domain.Directory = (*mockDirectory)(nil)

func (m *mockDirectory) GetGroupByName(ctx context.Context, name string) (*domain.Group, error) {
	if m.GetGroupByNameFunc == nil {
		panic("unexpected call to Directory.GetGroupByName")
	}
	return m.GetGroupByNameFunc(ctx, name)
}

func (m *mockDirectory) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	if m.GetGroupFunc == nil {
		panic("unexpected call to Directory.GetGroup")
	}
	return m.GetGroupFunc(ctx, groupID)
}

func (m *mockDirectory) GetGroupMembers(ctx context.Context, groupID string) ([]domain.DirectoryPrincipal, error) {
	if m.GetGroupMembersFunc == nil {
		panic("unexpected call to Directory.GetGroupMembers")
	}
	return m.GetGroupMembersFunc(ctx, groupID)
}

func (m *mockDirectory) ListManagedDevices(ctx context.Context, q *domain.DeviceQuery) ([]domain.ManagedDevice, error) {
	if m.ListManagedDevicesFunc == nil {
		panic("unexpected call to Directory.ListManagedDevices")
	}
	return m.ListManagedDevicesFunc(ctx, q)
}

func (m *mockDirectory) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.UserRecord, error) {
	if m.GetUsersByIDsFunc == nil {
		panic("unexpected call to Directory.GetUsersByIDs")
	}
	return m.GetUsersByIDsFunc(ctx, ids)
}

func (m *mockDirectory) GetDeviceByName(ctx context.Context, name string) (*domain.ManagedDevice, error) {
	if m.GetDeviceByNameFunc == nil {
		panic("unexpected call to Directory.GetDeviceByName")
	}
	return m.GetDeviceByNameFunc(ctx, name)
}

func (m *mockDirectory) AddGroupMember(ctx context.Context, groupID, principalID string) error {
	if m.AddGroupMemberFunc == nil {
		panic("unexpected call to Directory.AddGroupMember")
	}
	return m.AddGroupMemberFunc(ctx, groupID, principalID)
}

func (m *mockDirectory) RemoveGroupMember(ctx context.Context, groupID, principalID string) error {
	if m.RemoveGroupMemberFunc == nil {
		panic("unexpected call to Directory.RemoveGroupMember")
	}
	return m.RemoveGroupMemberFunc(ctx, groupID, principalID)
}

// mockRunStore implements domain.RunStore with function fields.
type mockRunStore struct {
	SaveReportFunc func(ctx context.Context, report *domain.SyncReport) error
	ListRunsFunc   func(ctx context.Context, limit int) ([]domain.RunSummary, error)
	GetRunFunc     func(ctx context.Context, runID string) (*domain.SyncReport, error)
}

var _ domain.RunStore = (*mockRunStore)(nil)

func (m *mockRunStore) SaveReport(ctx context.Context, report *domain.SyncReport) error {
	if m.SaveReportFunc == nil {
		panic("unexpected call to RunStore.SaveReport")
	}
	return m.SaveReportFunc(ctx, report)
}

func (m *mockRunStore) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if m.ListRunsFunc == nil {
		panic("unexpected call to RunStore.ListRuns")
	}
	return m.ListRunsFunc(ctx, limit)
}

func (m *mockRunStore) GetRun(ctx context.Context, runID string) (*domain.SyncReport, error) {
	if m.GetRunFunc == nil {
		panic("unexpected call to RunStore.GetRun")
	}
	return m.GetRunFunc(ctx, runID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// groupMembersFromMap builds a GetGroupMembers stub over a static topology.
func groupMembersFromMap(members map[string][]domain.DirectoryPrincipal) func(context.Context, string) ([]domain.DirectoryPrincipal, error) {
	return func(_ context.Context, groupID string) ([]domain.DirectoryPrincipal, error) {
		if m, ok := members[groupID]; ok {
			return m, nil
		}
		return nil, domain.ErrNotFound("group %s not found", groupID)
	}
}

func userLeaf(id, name string) domain.DirectoryPrincipal {
	return domain.DirectoryPrincipal{ID: id, DisplayName: name, Kind: domain.KindUser}
}

func deviceLeaf(id, name string) domain.DirectoryPrincipal {
	return domain.DirectoryPrincipal{ID: id, DisplayName: name, Kind: domain.KindDevice}
}

func groupLeaf(id, name string) domain.DirectoryPrincipal {
	return domain.DirectoryPrincipal{ID: id, DisplayName: name, Kind: domain.KindGroup}
}

func managedDevice(id, name string, platform domain.Platform, version, owner string) domain.ManagedDevice {
	return domain.ManagedDevice{
		ID:              id,
		DeviceName:      name,
		OperatingSystem: platform,
		OSVersion:       version,
		OwnerUserID:     owner,
	}
}
