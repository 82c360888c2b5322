// Package main is the entry point for the converge CLI.
//
// converge reads stack files declaring resources, refreshes what it
// recorded about them, plans the create, update, replace and delete
// operations needed to match the declaration, and applies them in
// dependency order.
//
// For detailed usage information, run:
//
//	converge --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/converge/cmd/converge/commands"
	"github.com/imamik/converge/cmd/converge/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// An interrupt stops scheduling new operations; in-flight ones finish
	// and are recorded.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit *handlers.ExitError
	if errors.As(err, &exit) {
		os.Exit(exit.Code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
