package domain

import (
	"strings"
	"time"
)

// AddMode selects which side of the (user, device) association is written to
// the target group.
type AddMode string

const (
	AddUsers   AddMode = "users"
	AddDevices AddMode = "devices"
	AddBoth    AddMode = "both"
)

// ParseAddMode parses a user-supplied add mode.
func ParseAddMode(s string) (AddMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "users":
		return AddUsers, nil
	case "devices":
		return AddDevices, nil
	case "both":
		return AddBoth, nil
	default:
		return "", ErrValidation("add mode must be 'users', 'devices', or 'both', got %q", s)
	}
}

// SyncPlan is the mutation set for one run, computed once and applied
// member-by-member. ToRemove holds the target group's current members when
// clearing is requested, and is empty otherwise.
type SyncPlan struct {
	TargetGroupID   string
	TargetGroupName string
	ToRemove        []DirectoryPrincipal
	ToAdd           []DirectoryPrincipal
}

// HasChanges returns true if applying the plan would touch the directory.
func (p *SyncPlan) HasChanges() bool {
	return len(p.ToRemove) > 0 || len(p.ToAdd) > 0
}

// MemberOperation is the direction of a single membership mutation.
type MemberOperation string

const (
	OpAdd    MemberOperation = "add"
	OpRemove MemberOperation = "remove"
)

// MemberOutcome classifies how a single membership mutation ended.
type MemberOutcome string

const (
	OutcomeAdded         MemberOutcome = "added"
	OutcomeAlreadyMember MemberOutcome = "already_member"
	OutcomeRemoved       MemberOutcome = "removed"
	OutcomeFailed        MemberOutcome = "failed"
)

// MemberResult is the per-member outcome of one planned mutation.
type MemberResult struct {
	PrincipalID string
	DisplayName string
	Operation   MemberOperation
	Outcome     MemberOutcome
	Error       string // underlying message for OutcomeFailed, empty otherwise
}

// SyncReport aggregates the per-member outcomes of one run. Individual
// failures are folded in here and never escalate past the synchronizer.
type SyncReport struct {
	RunID         string
	TargetGroup   string
	DryRun        bool
	ClearFirst    bool
	Added         int
	AlreadyMember int
	Removed       int
	Failed        int
	Members       []MemberResult
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Record appends a member result and bumps the matching counter.
func (r *SyncReport) Record(m MemberResult) {
	switch m.Outcome {
	case OutcomeAdded:
		r.Added++
	case OutcomeAlreadyMember:
		r.AlreadyMember++
	case OutcomeRemoved:
		r.Removed++
	case OutcomeFailed:
		r.Failed++
	}
	r.Members = append(r.Members, m)
}

// RunSummary is the condensed view of an archived run.
type RunSummary struct {
	RunID         string
	TargetGroup   string
	DryRun        bool
	Added         int
	AlreadyMember int
	Removed       int
	Failed        int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Summary condenses a report for listings.
func (r *SyncReport) Summary() RunSummary {
	return RunSummary{
		RunID:         r.RunID,
		TargetGroup:   r.TargetGroup,
		DryRun:        r.DryRun,
		Added:         r.Added,
		AlreadyMember: r.AlreadyMember,
		Removed:       r.Removed,
		Failed:        r.Failed,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}
