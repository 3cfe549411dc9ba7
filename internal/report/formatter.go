// Package report renders sync plans and run reports for operators, and
// archives finished reports to blob storage.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"groupsync/internal/domain"
)

// ANSI color codes.
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorDim   = "\033[2m"
)

// FormatPlanText writes a human-readable sync plan to w.
// If noColor is true, ANSI codes are suppressed.
func FormatPlanText(w io.Writer, plan *domain.SyncPlan, noColor bool) {
	c := func(code string) string {
		if noColor {
			return ""
		}
		return code
	}

	if !plan.HasChanges() {
		fmt.Fprintln(w, "No changes. Group membership is up-to-date.")
		return
	}

	fmt.Fprintf(w, "\n%s# %s (%s)%s\n", c(colorCyan), plan.TargetGroupName, plan.TargetGroupID, c(colorReset))

	for _, p := range plan.ToRemove {
		fmt.Fprintf(w, "  %s-%s %s %q will be removed\n",
			c(colorRed), c(colorReset), p.Kind, p.DisplayName)
	}
	for _, p := range plan.ToAdd {
		fmt.Fprintf(w, "  %s+%s %s %q will be added\n",
			c(colorGreen), c(colorReset), p.Kind, p.DisplayName)
	}

	fmt.Fprintf(w, "\n%sPlan:%s %d to add, %d to remove.\n",
		c(colorDim), c(colorReset), len(plan.ToAdd), len(plan.ToRemove))
}

// FormatReportText writes a human-readable run report to w.
func FormatReportText(w io.Writer, report *domain.SyncReport, noColor bool) {
	c := func(code string) string {
		if noColor {
			return ""
		}
		return code
	}

	fmt.Fprintf(w, "\n%s# run %s%s target %q\n", c(colorCyan), report.RunID, c(colorReset), report.TargetGroup)

	for _, m := range report.Members {
		switch m.Outcome {
		case domain.OutcomeAdded:
			fmt.Fprintf(w, "  %s+%s %s (%s) added\n",
				c(colorGreen), c(colorReset), m.DisplayName, m.PrincipalID)
		case domain.OutcomeAlreadyMember:
			fmt.Fprintf(w, "  %s=%s %s (%s) already a member\n",
				c(colorDim), c(colorReset), m.DisplayName, m.PrincipalID)
		case domain.OutcomeRemoved:
			fmt.Fprintf(w, "  %s-%s %s (%s) removed\n",
				c(colorRed), c(colorReset), m.DisplayName, m.PrincipalID)
		case domain.OutcomeFailed:
			fmt.Fprintf(w, "  %s✗%s %s (%s) %s: %s\n",
				c(colorRed), c(colorReset), m.DisplayName, m.PrincipalID, m.Operation, m.Error)
		}
	}

	if report.DryRun {
		fmt.Fprintf(w, "\n%sDry-run:%s %d to add, %d already members, %d to remove.",
			c(colorDim), c(colorReset), report.Added, report.AlreadyMember, report.Removed)
		fmt.Fprintln(w, " No changes were made.")
		return
	}

	took := report.FinishedAt.Sub(report.StartedAt).Round(10 * time.Millisecond)
	fmt.Fprintf(w, "\n%sApply complete:%s %d added, %d already members, %d removed",
		c(colorDim), c(colorReset), report.Added, report.AlreadyMember, report.Removed)
	if report.Failed > 0 {
		fmt.Fprintf(w, ", %s%d failed%s", c(colorRed), report.Failed, c(colorReset))
	}
	fmt.Fprintf(w, " in %s.\n", took)
}

type jsonPrincipal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
}

type jsonPlan struct {
	TargetGroupID   string          `json:"target_group_id"`
	TargetGroupName string          `json:"target_group_name"`
	ToAdd           []jsonPrincipal `json:"to_add"`
	ToRemove        []jsonPrincipal `json:"to_remove"`
}

// FormatPlanJSON writes the plan as JSON to w.
func FormatPlanJSON(w io.Writer, plan *domain.SyncPlan) error {
	jp := jsonPlan{
		TargetGroupID:   plan.TargetGroupID,
		TargetGroupName: plan.TargetGroupName,
		ToAdd:           make([]jsonPrincipal, 0, len(plan.ToAdd)),
		ToRemove:        make([]jsonPrincipal, 0, len(plan.ToRemove)),
	}
	for _, p := range plan.ToAdd {
		jp.ToAdd = append(jp.ToAdd, jsonPrincipal{ID: p.ID, DisplayName: p.DisplayName, Kind: string(p.Kind)})
	}
	for _, p := range plan.ToRemove {
		jp.ToRemove = append(jp.ToRemove, jsonPrincipal{ID: p.ID, DisplayName: p.DisplayName, Kind: string(p.Kind)})
	}

	data, err := json.MarshalIndent(jp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

type jsonMember struct {
	PrincipalID string `json:"principal_id"`
	DisplayName string `json:"display_name"`
	Operation   string `json:"operation"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
}

type jsonReport struct {
	RunID         string       `json:"run_id"`
	TargetGroup   string       `json:"target_group"`
	DryRun        bool         `json:"dry_run"`
	ClearFirst    bool         `json:"clear_first"`
	Added         int          `json:"added"`
	AlreadyMember int          `json:"already_member"`
	Removed       int          `json:"removed"`
	Failed        int          `json:"failed"`
	Members       []jsonMember `json:"members"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// Marshal renders the report as indented JSON. The same bytes are written by
// FormatReportJSON and archived by the blob uploader.
func Marshal(report *domain.SyncReport) ([]byte, error) {
	jr := jsonReport{
		RunID:         report.RunID,
		TargetGroup:   report.TargetGroup,
		DryRun:        report.DryRun,
		ClearFirst:    report.ClearFirst,
		Added:         report.Added,
		AlreadyMember: report.AlreadyMember,
		Removed:       report.Removed,
		Failed:        report.Failed,
		Members:       make([]jsonMember, 0, len(report.Members)),
		StartedAt:     report.StartedAt.UTC(),
		FinishedAt:    report.FinishedAt.UTC(),
	}
	for _, m := range report.Members {
		jr.Members = append(jr.Members, jsonMember{
			PrincipalID: m.PrincipalID,
			DisplayName: m.DisplayName,
			Operation:   string(m.Operation),
			Outcome:     string(m.Outcome),
			Error:       m.Error,
		})
	}

	data, err := json.MarshalIndent(jr, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// FormatReportJSON writes the report as JSON to w.
func FormatReportJSON(w io.Writer, report *domain.SyncReport) error {
	data, err := Marshal(report)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
