package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"groupsync/internal/sync"
)

type deviceView struct {
	Name        string `json:"name"`
	OS          string `json:"os"`
	Version     string `json:"version"`
	OwnerUserID string `json:"owner_user_id,omitempty"`
}

func newDevicesCmd(st *settings) *cobra.Command {
	var (
		groups     []string
		minIOS     string
		minIPadOS  string
		minWindows string
		op         string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices the filters match",
		Long:  "Resolves and prints the matched device set without a target group: the same candidates a sync with these flags would act on.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := buildFilters(minIOS, minIPadOS, minWindows, op)
			if err != nil {
				return err
			}

			sess, err := st.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			matches, err := sess.engine.Resolve(cmd.Context(), sync.Options{
				SourceGroups: groups,
				Filters:      filters,
				Limit:        limit,
			})
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				views := make([]deviceView, 0, len(matches))
				for _, m := range matches {
					views = append(views, deviceView{
						Name:        m.Name,
						OS:          string(m.OS),
						Version:     m.Version,
						OwnerUserID: m.OwnerUserID,
					})
				}
				return printJSON(os.Stdout, views)
			}

			for _, m := range matches {
				_, _ = fmt.Fprintf(os.Stdout, "%-32s %-10s %s\n", m.Name, m.OS, m.Version)
			}
			_, _ = fmt.Fprintf(os.Stdout, "\nMatched %d device(s).\n", len(matches))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&groups, "group", "g", nil, "Source group display name (repeatable; omit for the whole inventory)")
	cmd.Flags().StringVar(&minIOS, "min-ios", "", "iOS version requirement")
	cmd.Flags().StringVar(&minIPadOS, "min-ipados", "", "iPadOS version requirement")
	cmd.Flags().StringVar(&minWindows, "min-windows", "", "Windows version requirement")
	cmd.Flags().StringVar(&op, "op", "lt", "Version comparison operator (eq, ne, lt, le, gt, ge)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the matched devices (0 = no cap)")

	return cmd
}
