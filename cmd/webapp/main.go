// Command webapp serves session login over WebSocket (/ws) and HTTP (/session/login).
package main

import (
	"log"

	"webapp/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
