package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/cardsnap/internal/adapters/cli"
	"github.com/kirillkom/cardsnap/internal/bootstrap"
	"github.com/kirillkom/cardsnap/internal/config"
	"github.com/kirillkom/cardsnap/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, openRuntime, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func openRuntime(ctx context.Context, cfg config.Config, logLevel string) (*cli.Runtime, error) {
	logger := logging.NewJSONLoggerTo(os.Stderr, "cardsnap-cli", logLevel)
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &cli.Runtime{
		Lifecycle:  app.Lifecycle,
		Cards:      app.Cards,
		Credential: app.Credential,
		Notices:    app.Notices,
		Serve:      app.Serve,
		Close:      app.Close,
	}, nil
}
