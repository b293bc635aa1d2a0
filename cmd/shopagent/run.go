package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/shopagent/agent"
	"github.com/effective-security/shopagent/assistants"
	"github.com/effective-security/shopagent/callbacks"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

type runFlags struct {
	message string
	session string
	verbose bool
	events  bool
	stats   bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent with a single message or as a REPL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "single message to send")
	cmd.Flags().StringVarP(&f.session, "session", "s", "", "session ID, a new one is created when empty")
	cmd.Flags().BoolVar(&f.events, "events", false, "print the assistant and tool events")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print the events with the tool outputs")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "print the transcript and statistics of each turn")
	return cmd
}

func (a *app) run(ctx context.Context, f *runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	fanout := callbacks.NewFanout()
	if f.verbose {
		fanout.Add(callbacks.NewPrinter(a.stderr, callbacks.ModeVerbose))
	} else if f.events {
		fanout.Add(callbacks.NewPrinter(a.stderr, callbacks.ModeDefault))
	}
	var pad *callbacks.Scratchpad
	if f.stats {
		mode := callbacks.ModeDefault
		if f.verbose {
			mode = callbacks.ModeVerbose
		}
		pad = callbacks.NewScratchpad(mode)
		fanout.Add(pad)
	}

	var cb assistants.Callback
	if f.verbose || f.events || f.stats {
		cb = fanout
	}

	ag, err := a.newAgent(ctx, cfg, cb)
	if err != nil {
		return err
	}
	defer ag.Close()

	sessionID := f.session
	if sessionID == "" {
		sessionID = chatmodel.NewChatID()
	}

	if f.message != "" {
		return a.turn(ctx, ag, pad, sessionID, f.message)
	}
	return a.repl(ctx, ag, pad, sessionID)
}

// turn runs a message and prints the reply
func (a *app) turn(ctx context.Context, ag *agent.Agent, pad *callbacks.Scratchpad, sessionID, message string) error {
	ctx = ag.WithSession(ctx, sessionID)
	if pad != nil {
		pad.StartRun(ctx)
	}

	res, err := ag.Chat(ctx, sessionID, message)

	if pad != nil {
		_, transcript := pad.EndRun(ctx)
		_, _ = a.stderr.Write(transcript)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, res.Reply)
	if res.Output != nil && len(res.Output.SuggestedActions) > 0 {
		fmt.Fprintln(a.stdout)
		for _, action := range res.Output.SuggestedActions {
			fmt.Fprintf(a.stdout, "  * %s\n", action)
		}
	}
	return nil
}

const replHelp = `Commands:
  /cart   show the cart
  /reset  clear the cart and the history
  /help   show this help
  exit    quit`

func (a *app) repl(ctx context.Context, ag *agent.Agent, pad *callbacks.Scratchpad, sessionID string) error {
	fmt.Fprintf(a.stdout, "%s, session %s (type /help for commands, exit to quit)\n", ag.Config().Name, sessionID)

	scanner := bufio.NewScanner(a.stdin)
	for {
		fmt.Fprint(a.stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/help":
			fmt.Fprintln(a.stdout, replHelp)
			continue
		case "/cart":
			if err := a.printCart(ctx, ag, sessionID); err != nil {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
			}
			continue
		case "/reset":
			if err := ag.Reset(ctx, sessionID); err != nil {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(a.stdout, "The session is reset.")
			continue
		}

		if err := a.turn(ctx, ag, pad, sessionID, input); err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (a *app) printCart(ctx context.Context, ag *agent.Agent, sessionID string) error {
	cart, err := ag.Cart(ctx, sessionID)
	if err != nil {
		return err
	}
	return printYAML(a.stdout, cart)
}

func printYAML(w io.Writer, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
