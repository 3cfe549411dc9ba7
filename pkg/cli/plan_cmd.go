package cli

import (
	"os"

	"github.com/spf13/cobra"

	"groupsync/internal/report"
)

func newPlanCmd(st *settings) *cobra.Command {
	var (
		groups     []string
		target     string
		targetID   string
		mode       string
		minIOS     string
		minIPadOS  string
		minWindows string
		op         string
		clear      bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the membership changes a sync would apply",
		Long:  "Resolves the candidate set and prints the add/remove plan for the target group without applying anything.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := buildOptions(groups, target, targetID, mode, minIOS, minIPadOS, minWindows, op, clear, true, limit)
			if err != nil {
				return err
			}

			sess, err := st.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			plan, err := sess.engine.Plan(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				if err := report.FormatPlanJSON(os.Stdout, plan); err != nil {
					return err
				}
			} else {
				report.FormatPlanText(os.Stdout, plan, st.noColor)
			}

			// Exit code 2 when changes are pending (useful for CI drift checks).
			if plan.HasChanges() {
				sess.Close()
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&groups, "group", "g", nil, "Source group display name (repeatable; omit for the whole inventory)")
	cmd.Flags().StringVar(&target, "target", "", "Target group display name")
	cmd.Flags().StringVar(&targetID, "target-id", "", "Target group id (wins over --target)")
	cmd.Flags().StringVar(&mode, "mode", "devices", "What would be added (users, devices, both)")
	cmd.Flags().StringVar(&minIOS, "min-ios", "", "iOS version requirement")
	cmd.Flags().StringVar(&minIPadOS, "min-ipados", "", "iPadOS version requirement")
	cmd.Flags().StringVar(&minWindows, "min-windows", "", "Windows version requirement")
	cmd.Flags().StringVar(&op, "op", "lt", "Version comparison operator (eq, ne, lt, le, gt, ge)")
	cmd.Flags().BoolVar(&clear, "clear", true, "Plan removals of current target members too")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the matched devices (0 = no cap)")

	return cmd
}
