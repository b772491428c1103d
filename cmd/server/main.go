// Command server runs the publish3 publication backend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DariusIMP/publish3-backend/internal/server"
	"github.com/DariusIMP/publish3-backend/internal/server/config"
)

func main() {
	ctx := context.Background()

	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "publish3: %v\n", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
