package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/haru-ai/haru/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:  "haru",
		Usage: "Haru, Your Personal AI Assistant's Task Scheduler",
		Commands: []*cli.Command{
			serveHwd.cmd(),
			taskHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
