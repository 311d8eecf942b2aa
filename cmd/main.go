package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
	_ "github.com/lib/pq"
	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/config"
	"github.com/siahsang/conduit/internal/core"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
)

type application struct {
	config  config.Config
	logger  *slog.Logger
	core    *core.Core
	auth    *auth.Auth
	session databaseutils.Session
}

func main() {
	cfg := config.Load()
	logger := configLogger()
	logger.Info("Starting application...")

	db, err := openDBConnection(cfg)
	if err != nil {
		logger.Error("Error opening database connection", "error", err)
		os.Exit(1)
	}

	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("Database connection established successfully")

	sqlTemplate := databaseutils.NewSQLTemplate(db, cfg.DB.QueryTimeout)

	app := application{
		config:  cfg,
		logger:  logger,
		core:    core.NewCore(db, logger, sqlTemplate),
		auth:    auth.NewAuth(cfg.JWTSecret, cfg.TokenTTL),
		session: databaseutils.NewSession(db),
	}

	if err := app.serve(); err != nil {
		logger.Error("Error starting server", "error", err)
		os.Exit(1)
	}
}

func configLogger() *slog.Logger {
	handler := devslog.NewHandler(
		os.Stdout, &devslog.Options{
			HandlerOptions: &slog.HandlerOptions{
				AddSource: true,
				Level:     slog.LevelDebug,
			},
			NewLineAfterLog: false,
		})

	logger := slog.New(handler)
	return logger
}

func openDBConnection(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.DB.ConnMaxIdle)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DB.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}
