package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"groupsync/internal/domain"
	"groupsync/internal/osver"
	"groupsync/internal/report"
	"groupsync/internal/sync"
)

func newSyncCmd(st *settings) *cobra.Command {
	var (
		groups       []string
		target       string
		targetID     string
		mode         string
		minIOS       string
		minIPadOS    string
		minWindows   string
		op           string
		clear        bool
		dryRun       bool
		limit        int
		autoApprove  bool
		failOnErrors bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Resolve devices and synchronize them into the target group",
		Long:  "Expands the source groups (or the whole inventory), filters by OS version, shows the membership plan, and applies it to the target group.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := buildOptions(groups, target, targetID, mode, minIOS, minIPadOS, minWindows, op, clear, dryRun, limit)
			if err != nil {
				return err
			}

			sess, err := st.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			// 1. Compute the plan and show it.
			plan, err := sess.engine.Plan(cmd.Context(), opts)
			if err != nil {
				return err
			}
			report.FormatPlanText(os.Stdout, plan, st.noColor)
			if !plan.HasChanges() {
				return nil
			}

			// 2. Confirm unless auto-approved or dry-running.
			if !dryRun && !autoApprove {
				if !isStdinTTY() {
					return fmt.Errorf("confirmation required but stdin is not a terminal; use --auto-approve")
				}
				ok, err := confirm("\nApply these changes? [y/N] ")
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(os.Stdout, "Sync cancelled.")
					return nil
				}
			}

			// 3. Apply the plan. A fatal abort can still leave a partial
			// report worth showing and archiving.
			rep, applyErr := sess.engine.Apply(cmd.Context(), plan, opts)
			if rep != nil {
				if getOutputFormat(cmd) == "json" {
					if err := report.FormatReportJSON(os.Stdout, rep); err != nil {
						return err
					}
				} else {
					report.FormatReportText(os.Stdout, rep, st.noColor)
				}
				st.uploadReport(cmd, sess, rep)
			}
			if applyErr != nil {
				return applyErr
			}
			if failOnErrors && rep.Failed > 0 {
				return fmt.Errorf("%d membership change(s) failed", rep.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&groups, "group", "g", nil, "Source group display name (repeatable; omit for the whole inventory)")
	cmd.Flags().StringVar(&target, "target", "", "Target group display name")
	cmd.Flags().StringVar(&targetID, "target-id", "", "Target group id (wins over --target)")
	cmd.Flags().StringVar(&mode, "mode", "devices", "What to add to the target group (users, devices, both)")
	cmd.Flags().StringVar(&minIOS, "min-ios", "", "iOS version requirement")
	cmd.Flags().StringVar(&minIPadOS, "min-ipados", "", "iPadOS version requirement")
	cmd.Flags().StringVar(&minWindows, "min-windows", "", "Windows version requirement")
	cmd.Flags().StringVar(&op, "op", "lt", "Version comparison operator (eq, ne, lt, le, gt, ge)")
	cmd.Flags().BoolVar(&clear, "clear", true, "Remove current target members before adding (--clear=false diffs instead)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the would-be changes without touching the directory")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the matched devices for staged rollouts (0 = no cap)")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip the interactive confirmation prompt")
	cmd.Flags().BoolVar(&failOnErrors, "fail-on-errors", false, "Exit nonzero when any membership change fails")

	return cmd
}

// uploadReport archives the report to blob storage when --report-upload is
// set. Upload failures are logged, not fatal; the sync itself succeeded.
func (st *settings) uploadReport(cmd *cobra.Command, sess *session, rep *domain.SyncReport) {
	if st.reportUpload == "" || rep.DryRun {
		return
	}
	uploader, err := report.NewUploader(st.reportUpload, sess.tokens)
	if err != nil {
		st.logger.Warn("report upload misconfigured", "error", err)
		return
	}
	name, err := uploader.Upload(cmd.Context(), rep)
	if err != nil {
		st.logger.Warn("report upload failed", "run_id", rep.RunID, "error", err)
		return
	}
	_, _ = fmt.Fprintf(os.Stdout, "Report uploaded to %s\n", name)
}

// buildFilters assembles the version filter from the per-platform flags.
// The operator applies to every platform given; platforms without a version
// are left out of the set entirely.
func buildFilters(minIOS, minIPadOS, minWindows, op string) (sync.FilterSet, error) {
	operator, err := osver.ParseOperator(op)
	if err != nil {
		return nil, err
	}

	filters := sync.FilterSet{}
	if minIOS != "" {
		filters[domain.PlatformIOS] = sync.Requirement{Version: minIOS, Op: operator}
	}
	if minIPadOS != "" {
		filters[domain.PlatformIPadOS] = sync.Requirement{Version: minIPadOS, Op: operator}
	}
	if minWindows != "" {
		filters[domain.PlatformWindows] = sync.Requirement{Version: minWindows, Op: operator}
	}
	return filters, nil
}

func buildOptions(groups []string, target, targetID, mode, minIOS, minIPadOS, minWindows, op string, clear, dryRun bool, limit int) (sync.Options, error) {
	addMode, err := domain.ParseAddMode(mode)
	if err != nil {
		return sync.Options{}, err
	}
	filters, err := buildFilters(minIOS, minIPadOS, minWindows, op)
	if err != nil {
		return sync.Options{}, err
	}
	return sync.Options{
		SourceGroups:    groups,
		TargetGroupName: target,
		TargetGroupID:   targetID,
		Mode:            addMode,
		Filters:         filters,
		ClearFirst:      clear,
		DryRun:          dryRun,
		Limit:           limit,
	}, nil
}
