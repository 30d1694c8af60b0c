// Package persistence owns the database schema. Migrations are embedded and
// applied with goose over the pgx database/sql driver.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationTimeout = 60 * time.Second

// Commands accepted by RunMigrations.
var Commands = []string{"up", "down", "status", "redo", "reset", "version"}

// RunMigrations runs a goose command against the database at dsn.
func RunMigrations(ctx context.Context, dsn, command string, logger *zap.Logger) error {
	migrationCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("sql open: %w", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(zap.NewStdLog(logger))

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	logger.Info("running migrations", zap.String("command", command))

	if err := goose.RunContext(migrationCtx, command, db, "migrations"); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
