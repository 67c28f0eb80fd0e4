// Package main implements the gdce CLI. It removes unreachable definitions
// from module files and explains why definitions are kept.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/l3aro/go-globaldce/cmd/gdce/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (" + buildTime + ")"
	}
	commands.RootCmd.SetVersionTemplate(`gdce version {{.Version}}
`)

	if err := commands.RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
