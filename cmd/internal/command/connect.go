package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webapp/cmd/internal/client"

	"github.com/urfave/cli/v2"
)

// Exit codes for connect.
const (
	exitUnauthenticated = 2
	exitConnection      = 3
)

// ConnectCommand runs the session orchestrator once against a server.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect and log in with the stored session credential",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "WebSocket endpoint",
				EnvVars: []string{"WEBAPP_WS_URL"},
				Value:   "ws://127.0.0.1:8080/ws",
			},
			&cli.StringFlag{
				Name:  "origin",
				Usage: "Origin header to send",
				Value: "http://localhost",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up if no outcome arrives in time",
				Value: 10 * time.Second,
			},
		},
		Action: connect,
	}
}

func connect(c *cli.Context) error {
	log := newLogger(c)

	creds, err := openCredentials(c)
	if err != nil {
		return err
	}
	defer func() { _ = creds.Close() }()

	ctx, cancel := context.WithTimeout(ctxOf(c), c.Duration("timeout"))
	defer cancel()

	tr := client.NewWSTransport(c.String("url"), c.String("origin"), log)
	o, err := client.NewOrchestrator(creds, tr, client.WithLogger(log))
	if err != nil {
		return err
	}

	snap, err := awaitOutcome(ctx, o, tr)

	fmt.Fprintf(outWriter(c), "state: %s\n", snap.State)
	switch {
	case err != nil:
		return cli.Exit(fmt.Sprintf("%s (%v)", snap.Message, err), exitConnection)
	case snap.State == client.StateUnAuthenticated:
		return cli.Exit("not logged in", exitUnauthenticated)
	default:
		return nil
	}
}

// awaitOutcome drives the orchestrator until the state resolves, the
// connection fails, or ctx ends.
func awaitOutcome(ctx context.Context, o *client.Orchestrator, tr *client.WSTransport) (client.Snapshot, error) {
	updates, stop := o.Subscribe()
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	defer func() {
		cancel()
		<-runDone
	}()

	tr.Start(runCtx)
	go func() {
		defer close(runDone)
		_ = o.Run(runCtx, tr)
	}()

	for {
		select {
		case snap := <-updates:
			if snap.State != client.StateUnknown {
				return snap, nil
			}
			if snap.Message == client.MessageLoadingError {
				return snap, errors.New("connection failed")
			}
		case <-runDone:
			return o.Snapshot(), errors.New("connection closed")
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		}
	}
}
