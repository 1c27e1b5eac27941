package main

import (
	"log"

	mcpadapter "github.com/doctriage/doctriage/internal/adapters/mcp"
	"github.com/doctriage/doctriage/internal/bootstrap"
	"github.com/doctriage/doctriage/internal/config"
	"github.com/doctriage/doctriage/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("mcp", cfg.LogLevel)

	classifier, strategies, err := bootstrap.NewClassifierOnly(cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	srv := mcpadapter.NewServer(classifier, strategies, version, logger)
	logger.Info("mcp_serving_stdio")
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("mcp serve error: %v", err)
	}
}
