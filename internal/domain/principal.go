package domain

// PrincipalKind classifies a directory principal. The kind is decided once at
// the boundary where directory responses are decoded and never re-inspected
// from raw payloads deeper in the pipeline.
type PrincipalKind string

const (
	KindUser   PrincipalKind = "user"
	KindDevice PrincipalKind = "device"
	KindGroup  PrincipalKind = "group"
)

// DirectoryPrincipal is a user, device, or group addressable by an opaque id.
// Identity is ID; uniqueness is enforced by the directory, not by this system.
type DirectoryPrincipal struct {
	ID          string
	DisplayName string
	Kind        PrincipalKind
}

// Group is a directory group. Groups appear in expansion only as traversal
// nodes, never as leaves of a membership set.
type Group struct {
	ID          string
	DisplayName string
}

// UserRecord is a resolved directory user from a batched identity lookup.
type UserRecord struct {
	ID                string
	DisplayName       string
	UserPrincipalName string
}
