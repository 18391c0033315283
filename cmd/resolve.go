package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newResolveCmd creates the 'resolve' subcommand.
func newResolveCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Runs the redirect resolution chain once and prints the target",
		Long: `Creates a session, confirms a restart for the given escaped URL path and
prints where the client would be sent. The navigation is journaled like any
other.`,
		Example: `  preloader resolve /Alice
  preloader resolve /s/bob.example/page --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			sessions := appInstance.Sessions()
			ctrl := sessions.Create()
			target, err := sessions.ConfirmRestart(cmd.Context(), ctrl.ID(), path)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", path, err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(target)
			}
			_, err = fmt.Fprintf(out, "%s\t(%s)\n", target.URL, target.Step)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the target as JSON")
	return cmd
}
