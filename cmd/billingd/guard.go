package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (c *cli) guardCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Print the entitlement decision for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("%w: %q", errInvalidUserID, user)
			}

			return c.withApp(cmd.Context(), func(a *app) error {
				ent, err := a.service.Entitlement(cmd.Context(), userID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ent.Entitled {
					_, err = fmt.Fprintf(out, "%s: entitled\n", userID)
					return err
				}
				_, err = fmt.Fprintf(out, "%s: denied %s (%s)\n", userID, ent.Reason, ent.Message())
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
