package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/shopagent/callbacks"
	"github.com/effective-security/shopagent/mcp"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	var noChat bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the shop tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.mcp(cmd.Context(), !noChat)
		},
	}
	cmd.Flags().BoolVar(&noChat, "no-chat", false, "do not expose the chat tool")
	return cmd
}

func (a *app) mcp(ctx context.Context, withChat bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ag, err := a.newAgent(ctx, cfg, callbacks.NewPackageLogger(logger))
	if err != nil {
		return err
	}
	defer ag.Close()

	s := mcp.New("shopagent", Version, cfg.Tenant)
	if err = s.Register(ag.Registry().List()...); err != nil {
		return err
	}
	if withChat {
		if err = s.RegisterChat(ag); err != nil {
			return err
		}
	}

	logger.KV(xlog.NOTICE, "status", "starting", "cmd", "mcp", "version", Version, "tools", ag.Registry().Len())
	return s.Serve(ctx, a.stdin, a.stdout)
}
