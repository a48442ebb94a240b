package command

import (
	"fmt"

	"webapp/cmd/internal/client"

	"github.com/urfave/cli/v2"
)

// ForgetCommand removes the local session credential.
func ForgetCommand() *cli.Command {
	return &cli.Command{
		Name:  "forget",
		Usage: "Remove the stored session credential",
		Action: func(c *cli.Context) error {
			creds, err := openCredentials(c)
			if err != nil {
				return err
			}
			defer func() { _ = creds.Close() }()

			if err := creds.Remove(ctxOf(c), client.SessionCookie); err != nil {
				return err
			}
			fmt.Fprintln(outWriter(c), "forgotten")
			return nil
		},
	}
}
