package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/askdb/askdb/internal/cli/askdbctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options := askdbctl.Options{
		BaseURL: strings.TrimSpace(os.Getenv("ASKDB_API_URL")),
		APIKey:  strings.TrimSpace(os.Getenv("ASKDB_API_KEY")),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	code := askdbctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}
