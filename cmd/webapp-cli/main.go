// Command webapp-cli is the headless client: it logs in with the stored
// session credential and administers session tokens.
package main

import (
	"fmt"
	"os"

	"webapp/cmd/internal/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
