package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(st *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration profiles",
	}

	cmd.AddCommand(newConfigGetCmd(st))
	cmd.AddCommand(newConfigSetCmd(st))
	cmd.AddCommand(newConfigListCmd(st))
	return cmd
}

// profileKeys are the per-profile settings addressable by config get/set.
// current-profile addresses the top-level active-profile pointer instead.
var profileKeys = []string{"tenant-id", "client-id", "client-secret", "output", "history-db", "report-container"}

func profileKeyGet(p Profile, key string) (string, bool) {
	switch key {
	case "tenant-id":
		return p.TenantID, true
	case "client-id":
		return p.ClientID, true
	case "client-secret":
		return p.ClientSecret, true
	case "output":
		return p.Output, true
	case "history-db":
		return p.HistoryDB, true
	case "report-container":
		return p.ReportContainer, true
	}
	return "", false
}

func profileKeySet(p *Profile, key, value string) bool {
	switch key {
	case "tenant-id":
		p.TenantID = value
	case "client-id":
		p.ClientID = value
	case "client-secret":
		p.ClientSecret = value
	case "output":
		p.Output = value
	case "history-db":
		p.HistoryDB = value
	case "report-container":
		p.ReportContainer = value
	default:
		return false
	}
	return true
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key %q: use current-profile or one of %v", key, profileKeys)
}

// targetProfileName picks the profile a get/set addresses: the -p override,
// the configured active profile, or "default".
func targetProfileName(st *settings, cfg *UserConfig) string {
	if st.profile != "" {
		return st.profile
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func newConfigGetCmd(st *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value from the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no config found at %s: %w", ConfigPath(), err)
			}

			key := args[0]
			var value string
			if key == "current-profile" {
				value = cfg.CurrentProfile
			} else {
				p := cfg.Profiles[targetProfileName(st, cfg)]
				v, ok := profileKeyGet(p, key)
				if !ok {
					return unknownKeyError(key)
				}
				value = v
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]string{key: value})
			}
			_, _ = fmt.Fprintln(os.Stdout, value)
			return nil
		},
	}
}

func newConfigSetCmd(st *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value on the active profile",
		Long:  "Writes one value to the profile file. Setting current-profile switches the active profile; any other key is written to the profile selected with --profile (created if absent).",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{Profiles: map[string]Profile{}}
			}

			key, value := args[0], args[1]
			if key == "current-profile" {
				if _, ok := cfg.Profiles[value]; !ok {
					return fmt.Errorf("profile %q not found", value)
				}
				cfg.CurrentProfile = value
			} else {
				name := targetProfileName(st, cfg)
				p := cfg.Profiles[name]
				if !profileKeySet(&p, key, value) {
					return unknownKeyError(key)
				}
				cfg.Profiles[name] = p
				if cfg.CurrentProfile == "" {
					cfg.CurrentProfile = name
				}
			}

			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]string{
					"status": "ok",
					"key":    key,
					"path":   ConfigPath(),
				})
			}
			_, _ = fmt.Fprintf(os.Stdout, "Saved %s to %s\n", key, ConfigPath())
			return nil
		},
	}
}

func newConfigListCmd(st *settings) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Display the full configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "No configuration found at %s\n", ConfigPath())
				return err
			}
			if !reveal {
				cfg = maskConfig(cfg)
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, _ = fmt.Fprint(os.Stdout, string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show client secrets unmasked")
	return cmd
}

// maskConfig returns a copy of the config with client secrets masked.
func maskConfig(cfg *UserConfig) *UserConfig {
	masked := &UserConfig{
		CurrentProfile: cfg.CurrentProfile,
		Profiles:       make(map[string]Profile, len(cfg.Profiles)),
	}
	for name, p := range cfg.Profiles {
		p.ClientSecret = maskSecret(p.ClientSecret)
		masked.Profiles[name] = p
	}
	return masked
}

// maskSecret masks a sensitive string, showing first 4 and last 4 chars.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 10 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
