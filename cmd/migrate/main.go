package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/l2laihub/creditengine/internal/infra/config"
	"github.com/l2laihub/creditengine/internal/infra/persistence"
	"github.com/l2laihub/creditengine/internal/shared/logger"
	"go.uber.org/zap"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate <command>")
		fmt.Fprintf(os.Stderr, "Commands: %v\n", persistence.Commands)
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || !slices.Contains(persistence.Commands, args[0]) {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := persistence.RunMigrations(ctx, cfg.Database.DSN(), args[0], log); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Migration finished", zap.String("command", args[0]))
}
