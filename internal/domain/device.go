package domain

import "strings"

// Platform is the operating-system family of a managed device.
type Platform string

const (
	PlatformIOS     Platform = "iOS"
	PlatformIPadOS  Platform = "iPadOS"
	PlatformWindows Platform = "Windows"
	PlatformOther   Platform = "Other"
)

// ParsePlatform maps a directory-reported operating system string to a
// Platform. Unrecognized systems map to PlatformOther rather than failing;
// the device filter decides whether such devices are eligible.
func ParsePlatform(s string) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios":
		return PlatformIOS
	case "ipados":
		return PlatformIPadOS
	case "windows":
		return PlatformWindows
	default:
		return PlatformOther
	}
}

// ManagedDevice is a device enrolled in device management. OwnerUserID is
// empty for unenrolled or orphaned devices.
type ManagedDevice struct {
	ID              string
	DeviceName      string
	OperatingSystem Platform
	OSVersion       string
	OwnerUserID     string
}

// MatchedDevice is a device judged to satisfy the active filter. Matches
// accumulate into the candidate set keyed by device name.
type MatchedDevice struct {
	Name        string
	OS          Platform
	Version     string
	OwnerUserID string
}

// DeviceQuery narrows a managed-device listing server-side. The directory
// supports equality tests on platform and exact-version equality or
// inequality; all other comparisons are applied client-side after the fetch.
type DeviceQuery struct {
	Platform  Platform
	OSVersion string
	VersionNE bool // version test is "not equals" instead of "equals"
}
