package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the local status server until interrupted. With --auto-refresh the token manager
// refreshes expiring tokens in the background.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTokens(); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	}

	var calls server.CallLister
	if r.calls != nil {
		calls = r.calls
	}
	handler := server.NewStatusHandler(r.tokens, calls, version)
	router := server.NewRouter(handler, server.Recover(r.logger), server.Logging(r.logger))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cmd.Bool("auto-refresh") {
		go r.watchTokenEvents(ctx)
		go func() {
			if err := r.tokens.Run(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("auto refresh stopped", "error", err)
			}
		}()
	}

	r.logger.Info("status server", "addr", addr, "routes", handler.Routes())
	if err := server.Serve(ctx, addr, router, r.logger); err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

func (r *Runner) watchTokenEvents(ctx context.Context) {
	events := r.tokens.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			switch e.Kind {
			case auth.EventRefreshed:
				r.logger.Info("token refreshed", "host", e.Host)
			case auth.EventExpired:
				r.logger.Warn("token expired; run `rdex auth login`", "host", e.Host)
			default:
				r.logger.Error("token refresh failed", "host", e.Host, "error", e.Err)
			}
		}
	}
}

// serveCommand runs the status server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve token status and health on a local HTTP port",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (defaults to server.host:server.port)"},
			&cli.BoolFlag{Name: "auto-refresh", Usage: "Refresh expiring tokens in the background", Value: true},
		},
		Action: r.Serve,
	}
}
