// Package main is the entry point for the pocketbook CLI.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/cmd/pocketbook/commands"
	"github.com/jask/pocketbook/internal/app"
	"github.com/jask/pocketbook/internal/logger"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := commands.New(app.Open)
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		zerr.Log(ctx, logger.New(stderr, logger.Options{Level: "error"}), err)
		return 1
	}
	return 0
}
