package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"assistant-engine/handler"
	"assistant-engine/internal/bootstrap"
	"assistant-engine/internal/config"
	"assistant-engine/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Lambda only allows writes under /tmp.
	if os.Getenv("INDEX_PATH") == "" {
		cfg.Index.Path = "/tmp/index.db"
	}
	log := logging.New(logging.Options{Level: cfg.Log.Level, Prod: true})

	// ---- Services ----
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to wire services", zap.Error(err))
	}

	// ---- Handler ----
	h, err := handler.NewHandler(app.Services(), log.Named("handler"))
	if err != nil {
		log.Fatal("failed to create handler", zap.Error(err))
	}

	lambda.Start(h.Handle)
}
