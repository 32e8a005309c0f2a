package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/edgetrack/internal/logging"
	"github.com/danmuck/edgetrack/internal/observability"
	"github.com/danmuck/edgetrack/internal/service"
)

func main() {
	path := flag.String("config", "cmd/trackctl/config.toml", "service config path")
	flag.Parse()

	logging.ConfigureRuntime()
	cfg, err := loadServiceConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trackctl: %v\n", err)
		os.Exit(1)
	}
	if !logging.SetLevel(cfg.LogLevel) {
		fmt.Fprintf(os.Stderr, "trackctl: ignoring unknown log_level %q\n", cfg.LogLevel)
	}
	logger := observability.InitLogger(cfg.Name)

	svc, err := service.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trackctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "trackctl: %v\n", err)
		os.Exit(1)
	}
}
