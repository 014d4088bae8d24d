package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"boraha-concierge/internal/app"
	"boraha-concierge/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- Wiring ----
	// Sessions live in the warm container; idle ones are swept on each
	// invocation by the handler.
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("failed to build concierge", "err", err)
		os.Exit(1)
	}

	lambda.Start(a.Handler.Handle)
}
