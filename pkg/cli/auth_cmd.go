package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/spf13/cobra"
)

func newAuthCmd(st *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers",
	}

	cmd.AddCommand(newAuthTestCmd(st))
	return cmd
}

func newAuthTestCmd(st *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Acquire a directory token and report its expiry",
		Long:  "Verifies the configured credentials by requesting a token. With --device-code this walks through the interactive sign-in.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := st.credentials()
			if err != nil {
				return err
			}

			token, err := tokens.GetToken(cmd.Context(), policy.TokenRequestOptions{
				Scopes: []string{"https://graph.microsoft.com/.default"},
			})
			if err != nil {
				return fmt.Errorf("acquire token: %w", err)
			}

			expiresIn := time.Until(token.ExpiresOn).Round(time.Second)
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]string{
					"status":     "ok",
					"expires_on": token.ExpiresOn.UTC().Format(time.RFC3339),
				})
			}
			_, _ = fmt.Fprintf(os.Stdout, "Authenticated. Token expires in %s (%s).\n",
				expiresIn, token.ExpiresOn.UTC().Format(time.RFC3339))
			return nil
		},
	}
}
