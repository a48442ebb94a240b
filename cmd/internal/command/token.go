package command

import (
	"fmt"
	"time"

	"webapp/cmd/internal/app"
	"webapp/cmd/internal/client"

	"github.com/urfave/cli/v2"
)

// TokenCommand groups server-side session administration.
// It talks to the session-state store directly using the server's WEBAPP_* env.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue, inspect and revoke session tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Issue a session token for a subject",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Usage:    "Subject the token is bound to",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "store",
						Usage: "Save the token as the local session credential",
					},
				},
				Action: tokenIssue,
			},
			{
				Name:  "inspect",
				Usage: "Validate a token and show its stored session",
				Flags: []cli.Flag{tokenFlag()},
				Action: tokenInspect,
			},
			{
				Name:   "revoke",
				Usage:  "Revoke the session behind a token",
				Flags:  []cli.Flag{tokenFlag()},
				Action: tokenRevoke,
			},
		},
	}
}

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "token",
		Aliases:  []string{"t"},
		Usage:    "Session token",
		Required: true,
	}
}

func openSessions(c *cli.Context) (*app.Sessions, error) {
	return app.OpenSessions(ctxOf(c), app.LoadConfig(), newLogger(c))
}

func tokenIssue(c *cli.Context) error {
	sessions, err := openSessions(c)
	if err != nil {
		return err
	}
	defer func() { _ = sessions.Close() }()

	s, err := sessions.Service.Issue(ctxOf(c), c.String("subject"))
	if err != nil {
		return fmt.Errorf("issue: %w", err)
	}

	if c.Bool("store") {
		creds, err := openCredentials(c)
		if err != nil {
			return err
		}
		defer func() { _ = creds.Close() }()

		if err := creds.Set(ctxOf(c), client.SessionCookie, s.Token); err != nil {
			return err
		}
	}

	if !sessions.Persistent() {
		fmt.Fprintln(errWriter(c), "warning: in-memory session store; the session row is discarded on exit")
	}
	fmt.Fprintln(outWriter(c), s.Token)
	return nil
}

func tokenInspect(c *cli.Context) error {
	sessions, err := openSessions(c)
	if err != nil {
		return err
	}
	defer func() { _ = sessions.Close() }()

	claims, row, err := sessions.Service.Inspect(ctxOf(c), c.String("token"))
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	w := outWriter(c)
	fmt.Fprintf(w, "subject:    %s\n", claims.Subject)
	fmt.Fprintf(w, "token_id:   %s\n", claims.TokenID)
	fmt.Fprintf(w, "issued_at:  %s\n", claims.IssuedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "expires_at: %s\n", claims.ExpiresAt.Format(time.RFC3339))

	if row == nil {
		fmt.Fprintln(w, "session:    none")
		return nil
	}
	fmt.Fprintf(w, "session:    %s\n", row.ID)
	if row.RevokedAt != nil {
		reason := ""
		if row.RevocationReason != nil {
			reason = *row.RevocationReason
		}
		fmt.Fprintf(w, "revoked_at: %s (%s)\n", row.RevokedAt.Format(time.RFC3339), reason)
	}
	return nil
}

func tokenRevoke(c *cli.Context) error {
	sessions, err := openSessions(c)
	if err != nil {
		return err
	}
	defer func() { _ = sessions.Close() }()

	if err := sessions.Service.Revoke(ctxOf(c), c.String("token")); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	fmt.Fprintln(outWriter(c), "revoked")
	return nil
}
