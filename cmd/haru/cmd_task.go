package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/haru-ai/haru/internal/config"
	"github.com/haru-ai/haru/internal/consts"
	"github.com/haru-ai/haru/internal/scheduler"
)

var taskHwd = &TaskRunner{}

type TaskRunner struct{}

func (r *TaskRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Inspect scheduled tasks",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all persisted tasks",
				Action: r.list,
			},
		},
	}
}

func (r *TaskRunner) list(_ context.Context, _ *cli.Command) error {
	storePath := ""
	if cfg, err := config.Load(consts.DefaultConfigPath()); err == nil {
		storePath = cfg.Scheduler.Store
	}

	tasks, err := scheduler.LoadTasksFromStore(storePath)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	fmt.Print(scheduler.FormatTaskList(tasks))
	return nil
}
