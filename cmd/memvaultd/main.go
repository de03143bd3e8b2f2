package main

import (
	"context"
	"flag"
	"os"

	"github.com/memvault/memvault/pkg/config"
	"github.com/memvault/memvault/pkg/log"
	"github.com/memvault/memvault/pkg/mcpserver"
	"github.com/memvault/memvault/pkg/memvault"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Setup(log.DefaultConfig())
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log.Setup(log.Config{
		Level:  log.Level(cfg.Logging.Level),
		Format: log.Format(cfg.Logging.Format),
	})

	log.Info("Starting memvault server",
		"store", cfg.Store.Type,
		"embedding", cfg.Embedding.Provider,
		"transport", cfg.Server.Transport,
	)

	vault, err := memvault.New(context.Background(), cfg)
	if err != nil {
		log.Error("Failed to initialize memvault", "error", err)
		os.Exit(1)
	}
	defer vault.Close()

	server := mcpserver.NewServer(cfg.Server.Name, cfg.Server.Version, vault.Engine, cfg.Namespace)

	switch cfg.Server.Transport {
	case "http":
		err = server.ServeHTTP(cfg.Server.Addr)
	default:
		err = server.ServeStdio()
	}
	if err != nil {
		log.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
