package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/effective-security/shopagent/tools"
	"github.com/spf13/cobra"
)

func newToolsCmd(a *app) *cobra.Command {
	var schema bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools of the agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ag, err := a.newAgent(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer ag.Close()

			if schema {
				return printYAML(a.stdout, toolSchemas(ag.Registry()))
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, t := range ag.Registry().List() {
				fmt.Fprintf(w, "%s\t%s\n", t.Name(), firstLine(t.Description()))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&schema, "schema", false, "print the tool definitions with the parameters")
	return cmd
}

type toolSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

func toolSchemas(r *tools.Registry) []toolSchema {
	var list []toolSchema
	for _, t := range r.List() {
		list = append(list, toolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return list
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
