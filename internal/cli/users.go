package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Find other players",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "search <prefix>",
		Short: "Search usernames by prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result UserSearch

			if err := client.Get("/api/v1/users?query="+url.QueryEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	return cmd
}
