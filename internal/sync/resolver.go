package sync

import (
	"context"
	"log/slog"

	"groupsync/internal/domain"
	"groupsync/internal/osver"
)

// Resolver computes the candidate device set for a run. Source groups are
// expanded to their leaves; device leaves map to their inventory records and
// user leaves map to the devices they own; the filter decides what is kept.
// With no source groups the whole inventory is queried instead.
type Resolver struct {
	dir      domain.DirectoryReader
	caches   *RunCaches
	expander *Expander
	filter   *DeviceFilter
	logger   *slog.Logger
}

func NewResolver(dir domain.DirectoryReader, caches *RunCaches, filter *DeviceFilter, logger *slog.Logger) *Resolver {
	return &Resolver{
		dir:      dir,
		caches:   caches,
		expander: NewExpander(dir, caches, logger),
		filter:   filter,
		logger:   logger,
	}
}

// Resolve returns the matched devices for the given source groups, or for
// the whole inventory when none are given. Groups are processed in the
// order supplied; a group that cannot be resolved is logged and skipped
// rather than failing the run.
func (r *Resolver) Resolve(ctx context.Context, sourceGroups []string) ([]domain.MatchedDevice, error) {
	if len(sourceGroups) == 0 {
		return r.resolveOrgWide(ctx)
	}
	return r.resolveGroups(ctx, sourceGroups)
}

func (r *Resolver) resolveOrgWide(ctx context.Context) ([]domain.MatchedDevice, error) {
	set := newMatchSet()

	for _, query := range r.inventoryQueries() {
		devices, err := r.dir.ListManagedDevices(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, device := range devices {
			r.addIfMatched(set, device)
		}
	}

	return set.devices(), nil
}

// inventoryQueries builds one inventory query per configured platform so
// the directory narrows the fetch server-side where it can. Only eq and ne
// push down; every row still passes through the client-side filter, which
// applies the remaining operators.
func (r *Resolver) inventoryQueries() []*domain.DeviceQuery {
	platforms := r.filter.filters.platforms()
	if len(platforms) == 0 {
		return []*domain.DeviceQuery{nil}
	}

	queries := make([]*domain.DeviceQuery, 0, len(platforms))
	for _, platform := range platforms {
		query := &domain.DeviceQuery{Platform: platform}
		switch req := r.filter.filters[platform]; req.Op {
		case osver.OpEQ:
			query.OSVersion = req.Version
		case osver.OpNE:
			query.OSVersion = req.Version
			query.VersionNE = true
		}
		queries = append(queries, query)
	}
	return queries
}

func (r *Resolver) resolveGroups(ctx context.Context, sourceGroups []string) ([]domain.MatchedDevice, error) {
	set := newMatchSet()
	visited := make(map[string]bool)

	for _, name := range sourceGroups {
		group, err := r.dir.GetGroupByName(ctx, name)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			r.logger.Warn("source group not found, skipping", "group", name, "error", err)
			continue
		}

		leaves, err := r.expander.Expand(ctx, group.ID, visited)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			r.logger.Warn("group expansion failed, skipping", "group", name, "error", err)
			continue
		}

		deviceLeaves, userLeaves := partitionLeaves(leaves)
		if len(deviceLeaves) == 0 && len(userLeaves) == 0 {
			r.logger.Warn("group has no user or device members", "group", name)
			continue
		}

		r.logger.Info("expanded source group",
			"group", name,
			"device_members", len(deviceLeaves),
			"user_members", len(userLeaves),
		)

		if err := r.matchDeviceLeaves(ctx, set, deviceLeaves); err != nil {
			return nil, err
		}
		if err := r.matchUserLeaves(ctx, set, userLeaves); err != nil {
			return nil, err
		}
	}

	return set.devices(), nil
}

// partitionLeaves splits expansion leaves by kind. Device members are
// processed before user members.
func partitionLeaves(leaves []domain.DirectoryPrincipal) (devices, users []domain.DirectoryPrincipal) {
	for _, leaf := range leaves {
		switch leaf.Kind {
		case domain.KindDevice:
			devices = append(devices, leaf)
		case domain.KindUser:
			users = append(users, leaf)
		}
	}
	return devices, users
}

func (r *Resolver) matchDeviceLeaves(ctx context.Context, set *matchSet, leaves []domain.DirectoryPrincipal) error {
	for _, leaf := range leaves {
		if set.has(leaf.DisplayName) {
			continue
		}
		device, err := lookupDeviceRecord(ctx, r.dir, r.caches, leaf.DisplayName)
		if err != nil {
			if isFatal(err) {
				return err
			}
			r.logger.Warn("device has no inventory record, skipping",
				"device", leaf.DisplayName,
				"error", err,
			)
			continue
		}
		r.addIfMatched(set, *device)
	}
	return nil
}

func (r *Resolver) matchUserLeaves(ctx context.Context, set *matchSet, leaves []domain.DirectoryPrincipal) error {
	if len(leaves) == 0 {
		return nil
	}

	owners := make(map[string]bool, len(leaves))
	for _, leaf := range leaves {
		owners[leaf.ID] = true
	}

	inventory, err := r.inventory(ctx)
	if err != nil {
		return err
	}
	for _, device := range inventory {
		if device.OwnerUserID == "" || !owners[device.OwnerUserID] {
			continue
		}
		r.addIfMatched(set, device)
	}
	return nil
}

// inventory fetches the full device list at most once per run; later groups
// with user members reuse the cached copy.
func (r *Resolver) inventory(ctx context.Context) ([]domain.ManagedDevice, error) {
	if r.caches.inventoryLoaded {
		return r.caches.inventory, nil
	}
	devices, err := r.dir.ListManagedDevices(ctx, nil)
	if err != nil {
		return nil, err
	}
	r.caches.storeInventory(devices)
	return devices, nil
}

func (r *Resolver) addIfMatched(set *matchSet, device domain.ManagedDevice) {
	if set.has(device.DeviceName) {
		return
	}
	if !r.filter.Matches(device) {
		return
	}
	set.add(domain.MatchedDevice{
		Name:        device.DeviceName,
		OS:          device.OperatingSystem,
		Version:     device.OSVersion,
		OwnerUserID: device.OwnerUserID,
	})
}

// lookupDeviceRecord finds the inventory record for a device name, reusing
// the cached inventory when a prior step already paid for the full fetch.
func lookupDeviceRecord(ctx context.Context, dir domain.DirectoryReader, caches *RunCaches, name string) (*domain.ManagedDevice, error) {
	if caches.inventoryLoaded {
		device, ok := caches.deviceNamed(name)
		if !ok {
			return nil, domain.ErrNotFound("device %q not found in inventory", name)
		}
		return &device, nil
	}
	return dir.GetDeviceByName(ctx, name)
}

// matchSet accumulates matches keyed by device name so a device reachable
// through several groups lands exactly once, in first-seen order.
type matchSet struct {
	byName map[string]bool
	order  []domain.MatchedDevice
}

func newMatchSet() *matchSet {
	return &matchSet{byName: make(map[string]bool)}
}

func (s *matchSet) has(name string) bool { return s.byName[name] }

func (s *matchSet) add(m domain.MatchedDevice) {
	if s.byName[m.Name] {
		return
	}
	s.byName[m.Name] = true
	s.order = append(s.order, m)
}

func (s *matchSet) devices() []domain.MatchedDevice { return s.order }
