package main

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	session "github.com/goliatone/go-session"
	"github.com/goliatone/go-session/config"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "sessionctl",
		Usage:   "marketplace session tooling",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{config.DefaultEnvPrefix + "CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"V"},
				Usage:   "Enable trace logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			probeCommand(),
		},
	}
}

func loadConfig(c *cli.Context, overrides map[string]any) (*config.Config, error) {
	opts := []config.Option{config.WithOverrides(overrides)}
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	return config.Load(opts...)
}

func newLogger(c *cli.Context) *glog.BaseLogger {
	if c.Bool("verbose") {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("sessionctl"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("sessionctl"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

func loggerProvider(lgr *glog.BaseLogger) session.LoggerProvider {
	return session.LoggerProviderFunc(func(name string) session.Logger {
		return lgr.GetLogger(name)
	})
}
