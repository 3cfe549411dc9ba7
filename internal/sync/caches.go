package sync

import "groupsync/internal/domain"

// RunCaches memoizes directory reads for the duration of one run: direct
// group memberships, the managed-device inventory, and resolved user
// records. Entries are write-once-per-key and never shared across runs, so
// repeated invocations in one process stay independent.
type RunCaches struct {
	members map[string][]domain.DirectoryPrincipal
	users   map[string]domain.UserRecord

	inventory       []domain.ManagedDevice
	inventoryByName map[string]domain.ManagedDevice
	inventoryLoaded bool
}

func NewRunCaches() *RunCaches {
	return &RunCaches{
		members: make(map[string][]domain.DirectoryPrincipal),
		users:   make(map[string]domain.UserRecord),
	}
}

func (c *RunCaches) groupMembers(groupID string) ([]domain.DirectoryPrincipal, bool) {
	members, ok := c.members[groupID]
	return members, ok
}

func (c *RunCaches) storeGroupMembers(groupID string, members []domain.DirectoryPrincipal) {
	c.members[groupID] = members
}

// storeInventory indexes the full device list by name. Duplicate names keep
// the first record, matching the first-match-wins behavior of name lookups
// against the directory itself.
func (c *RunCaches) storeInventory(devices []domain.ManagedDevice) {
	c.inventory = devices
	c.inventoryByName = make(map[string]domain.ManagedDevice, len(devices))
	for _, device := range devices {
		if _, ok := c.inventoryByName[device.DeviceName]; !ok {
			c.inventoryByName[device.DeviceName] = device
		}
	}
	c.inventoryLoaded = true
}

func (c *RunCaches) deviceNamed(name string) (domain.ManagedDevice, bool) {
	device, ok := c.inventoryByName[name]
	return device, ok
}
