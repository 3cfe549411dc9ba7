package graph

import (
	"encoding/json"

	"groupsync/internal/domain"
)

// Directory object type discriminators as they appear on member payloads.
const (
	odataTypeUser   = "#microsoft.graph.user"
	odataTypeGroup  = "#microsoft.graph.group"
	odataTypeDevice = "#microsoft.graph.device"
)

// oDataPage is the list envelope shared by every collection endpoint.
type oDataPage struct {
	NextLink string          `json:"@odata.nextLink,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

type group struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func (g *group) toDomain() *domain.Group {
	return &domain.Group{ID: g.ID, DisplayName: g.DisplayName}
}

type user struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (u *user) toDomain() domain.UserRecord {
	return domain.UserRecord{
		ID:                u.ID,
		DisplayName:       u.DisplayName,
		UserPrincipalName: u.UserPrincipalName,
	}
}

type managedDevice struct {
	ID              string `json:"id"`
	DeviceName      string `json:"deviceName"`
	OperatingSystem string `json:"operatingSystem"`
	OSVersion       string `json:"osVersion"`
	UserID          string `json:"userId"`
}

func (d *managedDevice) toDomain() domain.ManagedDevice {
	return domain.ManagedDevice{
		ID:              d.ID,
		DeviceName:      d.DeviceName,
		OperatingSystem: domain.ParsePlatform(d.OperatingSystem),
		OSVersion:       d.OSVersion,
		OwnerUserID:     d.UserID,
	}
}

// memberEnvelope is the subset of a member payload needed to classify it.
type memberEnvelope struct {
	Type        string `json:"@odata.type"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// decodeMember classifies one raw member entry by its type discriminator.
// This is the only place the discriminator is inspected; everything past this
// boundary works with domain.PrincipalKind. Member types this engine cannot
// use (service principals, contacts) return ok=false and are skipped.
func decodeMember(raw json.RawMessage) (domain.DirectoryPrincipal, bool, error) {
	var m memberEnvelope
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.DirectoryPrincipal{}, false, err
	}

	var kind domain.PrincipalKind
	switch m.Type {
	case odataTypeUser:
		kind = domain.KindUser
	case odataTypeGroup:
		kind = domain.KindGroup
	case odataTypeDevice:
		kind = domain.KindDevice
	default:
		return domain.DirectoryPrincipal{}, false, nil
	}

	return domain.DirectoryPrincipal{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Kind:        kind,
	}, true, nil
}
