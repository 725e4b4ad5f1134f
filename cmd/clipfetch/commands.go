package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/veranemoloko/clipfetch/internal/api/client"
	"github.com/veranemoloko/clipfetch/internal/domain"
	apperrors "github.com/veranemoloko/clipfetch/internal/errors"
	"github.com/veranemoloko/clipfetch/internal/repository"
	"github.com/veranemoloko/clipfetch/internal/service"
	"github.com/veranemoloko/clipfetch/internal/storage"
	"github.com/veranemoloko/clipfetch/internal/ui"
	"github.com/veranemoloko/clipfetch/internal/validation"
	"github.com/veranemoloko/clipfetch/internal/worker"
)

const (
	exitFailed   = 1
	exitCanceled = 130
	barWidth     = 40
)

func submissionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "service",
			Aliases:  []string{"s"},
			Usage:    "youtube or tiktok",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "one of mp4_1080p, mp4_720p, mp4_480p, mp3_320, mp3_256, mp3_128",
			Value:   string(domain.FormatMP4720p),
		},
		&cli.StringFlag{
			Name:    "location",
			Aliases: []string{"l"},
			Usage:   "files or gallery; audio always goes to files",
			Value:   string(domain.SaveToFiles),
		},
		&cli.BoolFlag{
			Name:  "remove-watermark",
			Usage: "ask the server to remove the TikTok watermark",
		},
	}
}

func parseSubmission(c *cli.Context, url string) (domain.Submission, error) {
	svc, err := domain.ParseService(c.String("service"))
	if err != nil {
		return domain.Submission{}, err
	}
	format, err := domain.ParseFormatChoice(c.String("format"))
	if err != nil {
		return domain.Submission{}, err
	}
	loc, err := domain.ParseSaveLocation(c.String("location"))
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{
		Service:         svc,
		URL:             url,
		Format:          format,
		Location:        loc,
		RemoveWatermark: c.Bool("remove-watermark"),
	}, nil
}

// jobClient builds the API client and the options shared by every job.
func (e *env) jobClient() (*client.JobClient, []service.Option, error) {
	api, err := client.New(e.cfg.ServerURL, &http.Client{Timeout: e.cfg.HTTPTimeout}, e.logger)
	if err != nil {
		return nil, nil, err
	}

	files := storage.NewFileStorage(e.cfg.DocumentsDir, e.cfg.TempDir)
	fetcher := worker.NewDownloadWorker(files, api.HTTPClient(), e.logger)

	opts := []service.Option{
		service.WithPollInterval(e.cfg.PollInterval),
		service.WithFileStorage(fetcher, files),
		service.WithMediaLibrary(storage.NewGalleryDir(e.cfg.GalleryDir)),
		service.WithLogger(e.logger),
	}
	return api, opts, nil
}

// record appends a finished job to the history file, when one is configured.
// A history failure is logged and never changes the command result.
func (e *env) record(ctx context.Context, h domain.JobHandle, sub domain.Submission, state domain.DownloadState) {
	if e.cfg.HistoryFile == "" || state == nil || !state.Phase().IsTerminal() {
		return
	}
	if e.history == nil {
		store, err := repository.NewHistoryStore(e.cfg.HistoryFile)
		if err != nil {
			e.logger.Error("failed to open history", "error", err)
			return
		}
		e.history = store
	}
	if err := e.history.Append(ctx, repository.NewHistoryEntry(h, sub, state)); err != nil {
		e.logger.Error("failed to record history", "task_id", h, "error", err)
	}
}

func (e *env) downloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "download a single video and wait for it",
		ArgsUsage: "URL",
		Flags:     submissionFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one URL is required", exitFailed)
			}
			sub, err := parseSubmission(c, c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}

			api, opts, err := e.jobClient()
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}

			printer := ui.NewPrinter(c.App.Writer, barWidth)
			opts = append(opts, service.WithStateListener(func(_ domain.JobHandle, s domain.DownloadState) {
				printer.Print(s)
			}))
			svc := service.NewDownloadService(api, opts...)

			out, err := svc.Submit(c.Context, sub)
			if out != nil {
				e.record(c.Context, out.Handle, sub, out.State)
			}
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return cli.Exit("download canceled", exitCanceled)
			case err != nil:
				return cli.Exit(apperrors.Message(err), exitFailed)
			}

			if out.SaveErr != nil {
				e.logger.Warn("video kept in files only", "error", out.SaveErr)
			}
			return nil
		},
	}
}

func (e *env) batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "download several URLs with the same settings",
		ArgsUsage: "URL...",
		Flags:     submissionFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one URL is required", exitFailed)
			}

			subs := make([]domain.Submission, 0, c.NArg())
			for _, url := range c.Args().Slice() {
				sub, err := parseSubmission(c, url)
				if err != nil {
					return cli.Exit(err.Error(), exitFailed)
				}
				subs = append(subs, sub)
			}

			api, opts, err := e.jobClient()
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}

			printer := ui.NewPrinter(c.App.Writer, barWidth)
			registry := storage.NewJobRegistry()
			batch := service.NewBatchService(api, registry, e.cfg.MaxParallel, e.logger, opts...)

			if _, err := batch.Run(c.Context, subs, func(rec storage.JobRecord) {
				if rec.State.Phase().IsTerminal() {
					printer.PrintLabeled(rec.Key, rec.State)
				}
			}); err != nil {
				return cli.Exit("batch canceled", exitCanceled)
			}

			records := registry.GetAll()
			for _, rec := range records {
				e.record(c.Context, rec.Handle, rec.Submission, rec.State)
			}

			completed := registry.CountByPhase()[domain.PhaseCompleted]
			failed := len(records) - completed
			fmt.Fprintf(c.App.Writer, "%d of %d downloads completed\n", completed, len(records))
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d downloads failed", failed), exitFailed)
			}
			return nil
		},
	}
}

func (e *env) historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "list finished downloads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "phase",
				Usage: "only show completed or failed jobs",
			},
		},
		Action: func(c *cli.Context) error {
			if e.cfg.HistoryFile == "" {
				return cli.Exit("history is disabled", exitFailed)
			}
			store, err := repository.NewHistoryStore(e.cfg.HistoryFile)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}

			var entries []repository.HistoryEntry
			switch phase := domain.Phase(c.String("phase")); phase {
			case "":
				entries, err = store.List(c.Context)
			case domain.PhaseCompleted, domain.PhaseFailed:
				entries, err = store.ByPhase(c.Context, phase)
			default:
				return cli.Exit(fmt.Sprintf("unknown phase %q", phase), exitFailed)
			}
			if err != nil {
				return err
			}

			for _, en := range entries {
				detail := en.FileURL
				if en.LocalPath != "" {
					detail = en.LocalPath
				}
				if en.Phase == domain.PhaseFailed {
					detail = en.Error
				}
				fmt.Fprintf(c.App.Writer, "%s  %-9s %-7s %-9s %s  %s\n",
					en.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					en.Phase, en.Service, en.Format, en.URL, detail)
			}
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "check whether a URL is accepted for a service",
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "service",
				Aliases:  []string{"s"},
				Usage:    "youtube or tiktok",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one URL is required", exitFailed)
			}
			svc, err := domain.ParseService(c.String("service"))
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}

			url := c.Args().First()
			if !validation.ValidURL(svc, url) {
				return cli.Exit(fmt.Sprintf("%s: not a valid %s link", url, svc), exitFailed)
			}

			if id, ok := validation.ExtractVideoID(url); ok {
				fmt.Fprintf(c.App.Writer, "valid %s link, video id %s\n", svc, id)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "valid %s link\n", svc)
			return nil
		},
	}
}

func formatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "formats",
		Usage: "list the formats and the selector sent to the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "service",
				Aliases: []string{"s"},
				Usage:   "youtube or tiktok; all services when empty",
			},
		},
		Action: func(c *cli.Context) error {
			services := domain.Services
			if name := c.String("service"); name != "" {
				svc, err := domain.ParseService(name)
				if err != nil {
					return cli.Exit(err.Error(), exitFailed)
				}
				services = []domain.Service{svc}
			}

			for _, svc := range services {
				fmt.Fprintf(c.App.Writer, "%s:\n", svc)
				for _, f := range domain.FormatChoices {
					code, err := domain.FormatCode(svc, f)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "  %-10s %-22s %s\n", f, f.Label(), code)
				}
			}
			return nil
		},
	}
}
