package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/shopagent/callbacks"
	"github.com/effective-security/shopagent/web"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

func newWebCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the chat UI and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.web(cmd.Context(), listen)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address, overrides the config")
	return cmd
}

func (a *app) web(ctx context.Context, listen string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.ListenAddr = listen
	}

	ag, err := a.newAgent(ctx, cfg, callbacks.NewPackageLogger(logger))
	if err != nil {
		return err
	}
	defer ag.Close()

	logger.KV(xlog.NOTICE, "status", "starting", "cmd", "web", "version", Version, "listen", cfg.ListenAddr)
	return web.Serve(ctx, cfg.ListenAddr, ag)
}
