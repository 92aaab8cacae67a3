package main

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session/authapi"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the development auth API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Listen address, overrides server.address",
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "SQLite DSN for refresh tokens, overrides server.dsn",
			},
			&cli.DurationFlag{
				Name:  "access-ttl",
				Usage: "Access token lifetime, overrides server.access_token_ttl",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	overrides := map[string]any{}
	if v := c.String("address"); v != "" {
		overrides["server.address"] = v
	}
	if v := c.String("dsn"); v != "" {
		overrides["server.dsn"] = v
	}
	if v := c.Duration("access-ttl"); v > 0 {
		overrides["server.access_token_ttl"] = v.String()
	}

	cfg, err := loadConfig(c, overrides)
	if err != nil {
		return err
	}

	lgr := newLogger(c)
	logger := lgr.GetLogger("serve")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.Server.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	dir, err := authapi.NewDirectory(cfg.Server.PasswordCost, cfg.Server.Accounts...)
	if err != nil {
		return err
	}

	srv, err := authapi.NewServer(ctx, authapi.ServerConfig{
		Config:    cfg.Server,
		DB:        db,
		Directory: dir,
		Domains:   cfg.Server.Domains,
		Logger:    loggerProvider(lgr),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down auth api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database").
			WithMetadata(map[string]any{"dsn": dsn})
	}
	if strings.Contains(dsn, ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
