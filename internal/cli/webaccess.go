package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func webAccessCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web-access",
		Short: "Manage browser access to the daemon",
	}

	token := &cobra.Command{
		Use:   "token",
		Short: "Issue a new access token, invalidating the previous one",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			res, err := c.IssueToken(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "url:     %s\n", res.URL)
			fmt.Fprintf(w, "token:   %s\n", res.Token)
			yellow.Fprintf(w, "expires in %ds\n", res.ExpiresInSecs)
			return nil
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke the current token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			if err := c.RevokeToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token revoked")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show whether web access is running and who is connected",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			st, err := c.WebAccessStatus(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if st.Running {
				green.Fprintf(w, "running on port %d\n", st.Port)
			} else {
				red.Fprintln(w, "not running")
			}
			fmt.Fprintf(w, "clients: %d\n", st.ConnectedClients)
			fmt.Fprintf(w, "token:   %t\n", st.HasValidToken)
			return nil
		},
	}

	cmd.AddCommand(token, revoke, status)
	return cmd
}
