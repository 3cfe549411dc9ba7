package sync

import (
	"log/slog"
	"sort"

	"groupsync/internal/domain"
	"groupsync/internal/osver"
)

// Requirement is one platform's version gate.
type Requirement struct {
	Version string
	Op      osver.Operator
}

// FilterSet maps a platform to the version requirement its devices must
// satisfy. An empty set passes every device; a non-empty set is exclusive,
// so devices on platforms without an entry are filtered out.
type FilterSet map[domain.Platform]Requirement

// platforms returns the configured platforms in a stable order.
func (s FilterSet) platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(s))
	for platform := range s {
		out = append(out, platform)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DeviceFilter decides device inclusion against a FilterSet.
type DeviceFilter struct {
	filters FilterSet
	logger  *slog.Logger
}

func NewDeviceFilter(filters FilterSet, logger *slog.Logger) *DeviceFilter {
	return &DeviceFilter{filters: filters, logger: logger}
}

// Matches reports whether device passes the configured version gates. A
// version that does not parse never matches; the failure is logged for
// diagnosis rather than raised.
func (f *DeviceFilter) Matches(device domain.ManagedDevice) bool {
	if len(f.filters) == 0 {
		return true
	}

	req, ok := f.filters[device.OperatingSystem]
	if !ok {
		return false
	}

	match, err := osver.Compare(device.OSVersion, req.Version, req.Op)
	if err != nil {
		f.logger.Warn("device version incomparable, excluding",
			"device", device.DeviceName,
			"os", device.OperatingSystem,
			"version", device.OSVersion,
			"error", err,
		)
		return false
	}
	return match
}
