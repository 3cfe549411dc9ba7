package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"groupsync/internal/domain"
	"groupsync/internal/osver"
)

func TestDeviceFilter_NoFiltersPassThrough(t *testing.T) {
	filter := NewDeviceFilter(nil, testLogger())

	assert.True(t, filter.Matches(managedDevice("d-1", "iPhone12", domain.PlatformIOS, "17.5.1", "u-1")))
	assert.True(t, filter.Matches(managedDevice("d-2", "DESKTOP-7", domain.PlatformWindows, "garbage", "u-2")))
}

func TestDeviceFilter_ConfiguredScopeIsExclusive(t *testing.T) {
	filter := NewDeviceFilter(FilterSet{
		domain.PlatformIOS: {Version: "18.0", Op: osver.OpLT},
	}, testLogger())

	assert.True(t, filter.Matches(managedDevice("d-1", "iPhone12", domain.PlatformIOS, "17.5.1", "u-1")))
	assert.False(t, filter.Matches(managedDevice("d-2", "DESKTOP-7", domain.PlatformWindows, "10.0.19045", "u-2")),
		"platforms without a configured filter must be excluded")
}

func TestDeviceFilter_VersionGate(t *testing.T) {
	filter := NewDeviceFilter(FilterSet{
		domain.PlatformIOS:     {Version: "18.0", Op: osver.OpLT},
		domain.PlatformWindows: {Version: "10.0.22621", Op: osver.OpGE},
	}, testLogger())

	tests := []struct {
		name   string
		device domain.ManagedDevice
		want   bool
	}{
		{"ios below minimum", managedDevice("d-1", "iPhone12", domain.PlatformIOS, "17.5.1", "u-1"), true},
		{"ios at minimum", managedDevice("d-2", "iPhone15", domain.PlatformIOS, "18.0", "u-2"), false},
		{"ios bare major below", managedDevice("d-3", "iPhone11", domain.PlatformIOS, "17", "u-3"), true},
		{"windows at build", managedDevice("d-4", "LAPTOP-01", domain.PlatformWindows, "10.0.22621", "u-4"), true},
		{"windows older build", managedDevice("d-5", "LAPTOP-02", domain.PlatformWindows, "10.0.19045", "u-5"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.Matches(tt.device))
		})
	}
}

func TestDeviceFilter_IncomparableExcluded(t *testing.T) {
	filter := NewDeviceFilter(FilterSet{
		domain.PlatformIOS: {Version: "18.0", Op: osver.OpLT},
	}, testLogger())

	assert.False(t, filter.Matches(managedDevice("d-1", "iPhone12", domain.PlatformIOS, "17.5.beta", "u-1")))
	assert.False(t, filter.Matches(managedDevice("d-2", "iPhone13", domain.PlatformIOS, "", "u-2")))
}

func TestFilterSet_PlatformsStableOrder(t *testing.T) {
	set := FilterSet{
		domain.PlatformIOS:     {Version: "18.0", Op: osver.OpLT},
		domain.PlatformWindows: {Version: "10.0", Op: osver.OpGE},
		domain.PlatformIPadOS:  {Version: "17.0", Op: osver.OpLT},
	}

	assert.Equal(t,
		[]domain.Platform{domain.PlatformWindows, domain.PlatformIOS, domain.PlatformIPadOS},
		set.platforms(),
	)
}
