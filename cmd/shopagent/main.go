// Command shopagent runs the shopping assistant
// from the command line, as a web UI, or as an MCP server.
package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/agent"
	"github.com/effective-security/shopagent/assistants"
	"github.com/effective-security/xlog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent", "cmd")

// globalFlags are shared by the commands
type globalFlags struct {
	config    string
	llmConfig string
	envFile   string
	logLevel  string
	debug     bool
}

// app holds the flags and the streams of the command
type app struct {
	flags  globalFlags
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	root := newRootCmd(&app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "shopagent",
		Short:        "shopagent - e-commerce shopping assistant",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.flags.config, "config", "c", "", "agent config file, YAML")
	pf.StringVar(&a.flags.llmConfig, "llm-config", "", "LLM providers config file, YAML")
	pf.StringVar(&a.flags.envFile, "env-file", ".env", "file with the environment variables")
	pf.StringVar(&a.flags.logLevel, "log-level", "info", "log level: error|warning|notice|info|debug")
	pf.BoolVarP(&a.flags.debug, "debug", "D", false, "debug logging")

	cmd.AddCommand(
		newRunCmd(a),
		newWebCmd(a),
		newMCPCmd(a),
		newToolsCmd(a),
	)
	return cmd
}

// setup loads the .env file and configures the logger
func (a *app) setup() error {
	if a.flags.envFile != "" {
		err := godotenv.Load(a.flags.envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "failed to load %s", a.flags.envFile)
		}
	}

	level, err := parseLogLevel(a.flags.logLevel)
	if err != nil {
		return err
	}
	if a.flags.debug {
		level = xlog.DEBUG
	}
	xlog.SetFormatter(xlog.NewStringFormatter(a.stderr))
	xlog.SetGlobalLogLevel(level)
	return nil
}

func parseLogLevel(s string) (xlog.LogLevel, error) {
	switch strings.ToLower(s) {
	case "critical":
		return xlog.CRITICAL, nil
	case "error":
		return xlog.ERROR, nil
	case "warning", "warn":
		return xlog.WARNING, nil
	case "notice":
		return xlog.NOTICE, nil
	case "", "info":
		return xlog.INFO, nil
	case "debug":
		return xlog.DEBUG, nil
	}
	return xlog.INFO, errors.Newf("invalid log level: %s", s)
}

// loadConfig returns the agent config with the flags applied
func (a *app) loadConfig() (*agent.Config, error) {
	cfg, err := agent.LoadConfig(a.flags.config)
	if err != nil {
		return nil, err
	}
	if a.flags.llmConfig != "" {
		cfg.LLMConfig = a.flags.llmConfig
	}
	return cfg, nil
}

// newAgent creates the agent of the config
func (a *app) newAgent(ctx context.Context, cfg *agent.Config, cb assistants.Callback) (*agent.Agent, error) {
	var opts []agent.Option
	if cb != nil {
		opts = append(opts, agent.WithCallback(cb))
	}
	ag, err := agent.New(ctx, cfg, opts...)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create agent")
	}
	return ag, nil
}
