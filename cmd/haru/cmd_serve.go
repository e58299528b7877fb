package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/haru-ai/haru/internal/config"
	"github.com/haru-ai/haru/internal/consts"
	"github.com/haru-ai/haru/internal/notify"
	"github.com/haru-ai/haru/internal/pkg/logs"
	"github.com/haru-ai/haru/internal/runner"
	"github.com/haru-ai/haru/internal/scheduler"
	"github.com/haru-ai/haru/internal/server"
	"github.com/haru-ai/haru/internal/tool"
	"github.com/haru-ai/haru/internal/tool/schedx"
)

var serveHwd = &ServeRunner{}

type ServeRunner struct{}

func (r *ServeRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the scheduler daemon with the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file",
			},
		},
		Action: r.run,
	}
}

func (r *ServeRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfgPath := cmd.String("config")
	if cfgPath == "" {
		cfgPath = consts.DefaultConfigPath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config error: %w", err)
	}

	if err = r.initLogger(cfg.Logging); err != nil {
		return fmt.Errorf("init logger error: %w", err)
	}

	logs.CtxInfo(ctx, "booting Haru scheduler, using config file: %s...", cfgPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler.Init(
		cfg.Scheduler,
		runner.NewHTTPRunner(cfg.Agent),
		notify.NewWebhookNotifier(cfg.Notify),
	)
	if err = scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	registry := tool.NewRegistry(schedx.NewSchedTool())

	srv := server.New(cfg.Server, scheduler.Default(), registry)
	if err = srv.Start(ctx); err != nil {
		cancel()
		scheduler.Stop(context.Background())
		return fmt.Errorf("start server: %w", err)
	}

	logs.CtxInfo(ctx, "ALL IS WELL!!! Press Ctrl+C to stop.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case sig := <-signalCh:
		logs.CtxInfo(ctx, "Received shutdown signal (%s). Stopping runtime...", sig.String())
	case <-ctx.Done():
		logs.CtxInfo(ctx, "Context canceled. Stopping runtime...")
	}

	if err = srv.Stop(context.Background()); err != nil {
		logs.CtxError(ctx, "stop server error: %v", err)
	}
	scheduler.Stop(context.Background())

	logs.CtxInfo(ctx, "all stopped, good bye!")
	return nil
}

func (r *ServeRunner) initLogger(cfg config.LoggingConfig) error {
	return logs.Init(logs.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	})
}
