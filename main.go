package main

import (
	"context"

	"github.com/Polyconseil/xlsx-streaming/internal/bootstrap"
	"github.com/Polyconseil/xlsx-streaming/internal/logger"
)

func main() {
	ctx := context.Background()

	app := bootstrap.NewApp()
	if err := app.Initialize(ctx); err != nil {
		logger.ErrorLogErr(ctx, err, "Failed to initialize application")
		panic(err)
	}

	logger.InfoLog(ctx, "Export jobs ready, starting server")
	if err := app.Run(); err != nil {
		logger.ErrorLogErr(ctx, err, "Server stopped")
	}
}
