// Package main is the entry point for the vouchnet API server.
//
// main stays minimal: read configuration, build the logger, hand both to
// internal/server. All actual logic lives in internal/.
//
// Usage:
//
//	server [-config vouchnet.toml]
//	server -hash-operator-key 's3cret'   # prints a bcrypt hash for auth.operator_key_hash
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/vouchnet/internal/auth"
	"github.com/sakif/vouchnet/internal/config"
	"github.com/sakif/vouchnet/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (default: search vouchnet.toml, config/vouchnet.toml, /etc/vouchnet/vouchnet.toml)")
	hashKey := flag.String("hash-operator-key", "", "print the bcrypt hash of the given operator key and exit")
	flag.Parse()

	if *hashKey != "" {
		hash, err := auth.HashOperatorKey(*hashKey, auth.DefaultOperatorKeyCost)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hashing operator key:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.Database.Driver == config.DriverSQLite && cfg.Database.Path != ":memory:" {
		// os.MkdirAll is `mkdir -p`.
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
