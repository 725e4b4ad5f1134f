package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	cfgpkg "github.com/veranemoloko/clipfetch/internal/config"
	"github.com/veranemoloko/clipfetch/internal/metrics"
	"github.com/veranemoloko/clipfetch/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// env is the state shared by all commands once Before has run.
type env struct {
	cfg     *cfgpkg.Config
	logger  *slog.Logger
	history repository.HistoryRepo
	metrics *metrics.Exporter
}

func newApp(stdout, stderr io.Writer) *cli.App {
	e := &env{}

	return &cli.App{
		Name:  "clipfetch",
		Usage: "download YouTube and TikTok videos through a download server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "base URL of the download server, overrides CLIPFETCH_SERVER_URL",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve /metrics on this address while the command runs",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write metrics in text exposition format to this file on exit",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := cfgpkg.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if c.IsSet("server") {
				cfg.ServerURL = c.String("server")
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			e.cfg = cfg
			e.logger = cfgpkg.SetupLogger(cfg, stderr)
			e.logger.Debug("configuration loaded", "server_url", cfg.ServerURL)

			if addr := c.String("metrics-addr"); addr != "" {
				exp, err := metrics.StartExporter(addr, e.logger)
				if err != nil {
					return fmt.Errorf("failed to start metrics exporter: %w", err)
				}
				e.metrics = exp
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if e.metrics != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = e.metrics.Shutdown(ctx)
			}

			path := c.String("metrics-file")
			if path == "" {
				return nil
			}
			if err := metrics.WriteFile(path); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
			return nil
		},
		Commands: []*cli.Command{
			e.downloadCommand(),
			e.batchCommand(),
			e.historyCommand(),
			checkCommand(),
			formatsCommand(),
		},
		Writer:    stdout,
		ErrWriter: stderr,
		// Exit codes are handled by main.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}
