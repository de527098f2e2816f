package main

import (
	"log/slog"
	"os"

	"github.com/clambin/climate-guard/internal/cmd"
)

var version = "change-me"

func main() {
	cmd.RootCmd.Version = version
	if err := cmd.RootCmd.Execute(); err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
}
