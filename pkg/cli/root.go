// Package cli implements the groupsync command line: group resolution,
// membership plans and syncs, run history, and profile management.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"groupsync/internal/graph"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd, _ := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]any{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// settings holds the resolved persistent options shared by all commands.
// PersistentPreRunE fills it with flag > env > profile > default precedence.
type settings struct {
	tenantID     string
	clientID     string
	clientSecret string
	graphURL     string
	output       string
	profile      string
	historyDB    string
	reportUpload string
	deviceCode   bool
	noColor      bool
	verbose      bool

	logger *slog.Logger

	// tokens short-circuits credential construction when pre-set. Tests use
	// it to run commands against fixture servers without touching the
	// identity platform.
	tokens graph.TokenProvider
}

func newRootCmd() (*cobra.Command, *settings) {
	st := &settings{}

	rootCmd := &cobra.Command{
		Use:           "groupsync",
		Short:         "Directory group resolution and synchronization",
		Long:          "Resolves device and user sets from directory groups, filters them by OS version, and synchronizes them into a target group.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				// Config file is optional
				cfg = &UserConfig{Profiles: map[string]Profile{}}
			}

			p, err := cfg.ActiveProfile(st.profile)
			if err != nil {
				// config set may target a profile that does not exist yet;
				// everywhere else an unknown -p is a typo.
				if !(cmd.Name() == "set" && cmd.Parent() != nil && cmd.Parent().Name() == "config") {
					return err
				}
				p = Profile{}
			}

			// Apply precedence: flag > env > profile > default
			resolve := func(flagName, envName string, dst *string, profileValue string) {
				if cmd.Flags().Changed(flagName) {
					return
				}
				if v := os.Getenv(envName); v != "" {
					*dst = v
				} else if profileValue != "" {
					*dst = profileValue
				}
			}
			resolve("tenant", "GROUPSYNC_TENANT_ID", &st.tenantID, p.TenantID)
			resolve("client-id", "GROUPSYNC_CLIENT_ID", &st.clientID, p.ClientID)
			resolve("client-secret", "GROUPSYNC_CLIENT_SECRET", &st.clientSecret, p.ClientSecret)
			resolve("graph-url", "GRAPH_BASE_URL", &st.graphURL, "")
			resolve("output", "GROUPSYNC_OUTPUT", &st.output, p.Output)
			resolve("history-db", "GROUPSYNC_HISTORY_DB", &st.historyDB, p.HistoryDB)
			resolve("report-upload", "GROUPSYNC_REPORT_CONTAINER", &st.reportUpload, p.ReportContainer)

			if err := validateOutputFormat(st.output); err != nil {
				return err
			}

			level := slog.LevelInfo
			if st.verbose {
				level = slog.LevelDebug
			}
			st.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			if st.verbose {
				cmd.Flags().VisitAll(func(f *pflag.Flag) {
					if !f.Changed {
						return
					}
					v := f.Value.String()
					if f.Name == "client-secret" {
						v = maskSecret(v)
					}
					st.logger.Debug("flag set", "flag", f.Name, "value", v)
				})
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&st.tenantID, "tenant", "", "Directory tenant id")
	rootCmd.PersistentFlags().StringVar(&st.clientID, "client-id", "", "App registration client id")
	rootCmd.PersistentFlags().StringVar(&st.clientSecret, "client-secret", "", "App registration client secret")
	rootCmd.PersistentFlags().BoolVar(&st.deviceCode, "device-code", false, "Sign in interactively with a device code instead of a client secret")
	rootCmd.PersistentFlags().StringVar(&st.graphURL, "graph-url", "", "Directory API base URL (sovereign clouds)")
	rootCmd.PersistentFlags().StringVarP(&st.output, "output", "o", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&st.profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().StringVar(&st.historyDB, "history-db", "", "SQLite file for run history (optional)")
	rootCmd.PersistentFlags().StringVar(&st.reportUpload, "report-upload", "", "Blob container URL to upload run reports to (optional)")
	rootCmd.PersistentFlags().BoolVar(&st.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&st.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newSyncCmd(st))
	rootCmd.AddCommand(newPlanCmd(st))
	rootCmd.AddCommand(newDevicesCmd(st))
	rootCmd.AddCommand(newExpandCmd(st))
	rootCmd.AddCommand(newRunsCmd(st))
	rootCmd.AddCommand(newConfigCmd(st))
	rootCmd.AddCommand(newAuthCmd(st))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd, st
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
