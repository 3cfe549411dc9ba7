package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type principalView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
}

func newExpandCmd(st *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <group>",
		Short: "Print a group's flattened membership",
		Long:  "Expands nested groups to their user and device leaves, the way the resolver sees them. Useful for debugging unexpected sync candidates.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := st.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			leaves, err := sess.engine.Expand(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				views := make([]principalView, 0, len(leaves))
				for _, leaf := range leaves {
					views = append(views, principalView{
						ID:          leaf.ID,
						DisplayName: leaf.DisplayName,
						Kind:        string(leaf.Kind),
					})
				}
				return printJSON(os.Stdout, views)
			}

			for _, leaf := range leaves {
				_, _ = fmt.Fprintf(os.Stdout, "%-8s %s (%s)\n", leaf.Kind, leaf.DisplayName, leaf.ID)
			}
			_, _ = fmt.Fprintf(os.Stdout, "\n%d member(s) after expansion.\n", len(leaves))
			return nil
		},
	}
	return cmd
}
