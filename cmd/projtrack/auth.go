// cmd/projtrack/auth.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"projtrack/internal/credentials"
	"projtrack/internal/model"
	"projtrack/internal/remote"
)

func newAuthCommand(a *app) *cobra.Command {
	var (
		token      string
		deleteFlag bool
		testFlag   bool
	)

	cmd := &cobra.Command{
		Use:   "auth <platform>",
		Short: "Store, test or delete an API token for a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := model.Platform(args[0])
			if !platform.Valid() {
				return fmt.Errorf("unknown platform %q (expected github or gitlab)", args[0])
			}

			switch {
			case deleteFlag:
				if err := credentials.DeleteToken(platform); err != nil {
					return err
				}
				a.printer.Successf("Deleted %s token", platform)
				return nil

			case testFlag:
				return a.testConnection(cmd, platform)

			case token != "":
				if err := credentials.StoreToken(platform, token); err != nil {
					return err
				}
				a.printer.Successf("Stored %s token", platform)
				return nil

			default:
				return fmt.Errorf("nothing to do: pass --token, --test or --delete")
			}
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token to store")
	cmd.Flags().BoolVar(&deleteFlag, "delete", false, "delete the stored token")
	cmd.Flags().BoolVar(&testFlag, "test", false, "verify the stored token against the platform API")
	return cmd
}

func (a *app) testConnection(cmd *cobra.Command, platform model.Platform) error {
	token, err := credentials.Token(platform)
	if err != nil {
		return fmt.Errorf("no %s token found; store one with: projtrack auth %s --token YOUR_TOKEN", platform, platform)
	}

	client, err := remote.NewClient(platform, token, a.logger)
	if err != nil {
		return err
	}

	if err := client.TestConnection(cmd.Context()); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	a.printer.Successf("Authenticated against %s", platform)

	rl, err := client.RateLimit(cmd.Context())
	if err == nil {
		a.printer.Infof("API quota: %d/%d remaining, resets %s",
			rl.Remaining, rl.Limit, rl.ResetAt.Local().Format(time.Kitchen))
	}
	return nil
}
