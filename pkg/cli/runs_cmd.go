package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"groupsync/internal/domain"
	"groupsync/internal/report"
)

func newRunsCmd(st *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past sync runs",
	}

	cmd.AddCommand(newRunsListCmd(st))
	cmd.AddCommand(newRunsShowCmd(st))
	return cmd
}

type runView struct {
	RunID         string    `json:"run_id"`
	TargetGroup   string    `json:"target_group"`
	DryRun        bool      `json:"dry_run"`
	Added         int       `json:"added"`
	AlreadyMember int       `json:"already_member"`
	Removed       int       `json:"removed"`
	Failed        int       `json:"failed"`
	StartedAt     time.Time `json:"started_at"`
}

func newRunsListCmd(st *settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, closeDBs, err := st.openRuns()
			if err != nil {
				return err
			}
			defer closeDBs()

			summaries, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				views := make([]runView, 0, len(summaries))
				for _, s := range summaries {
					views = append(views, summaryView(s))
				}
				return printJSON(os.Stdout, views)
			}

			if len(summaries) == 0 {
				_, _ = fmt.Fprintln(os.Stdout, "No runs recorded.")
				return nil
			}
			_, _ = fmt.Fprintf(os.Stdout, "%-20s %-36s %-24s %-5s %s\n",
				"STARTED", "RUN ID", "TARGET", "DRY", "ADDED/EXISTING/REMOVED/FAILED")
			for _, s := range summaries {
				dry := ""
				if s.DryRun {
					dry = "yes"
				}
				_, _ = fmt.Fprintf(os.Stdout, "%-20s %-36s %-24s %-5s %d/%d/%d/%d\n",
					s.StartedAt.UTC().Format("2006-01-02 15:04:05"),
					s.RunID, s.TargetGroup, dry,
					s.Added, s.AlreadyMember, s.Removed, s.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func newRunsShowCmd(st *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the full report of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, closeDBs, err := st.openRuns()
			if err != nil {
				return err
			}
			defer closeDBs()

			rep, err := runs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return report.FormatReportJSON(os.Stdout, rep)
			}
			report.FormatReportText(os.Stdout, rep, st.noColor)
			return nil
		},
	}
}

func summaryView(s domain.RunSummary) runView {
	return runView{
		RunID:         s.RunID,
		TargetGroup:   s.TargetGroup,
		DryRun:        s.DryRun,
		Added:         s.Added,
		AlreadyMember: s.AlreadyMember,
		Removed:       s.Removed,
		Failed:        s.Failed,
		StartedAt:     s.StartedAt.UTC(),
	}
}
