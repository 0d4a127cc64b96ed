package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newTemplatesCmd(e *env, verbose *bool) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"ls"},
		Short:   "List registered templates and their locales",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, reg, err := e.build(*verbose)
			if err != nil {
				return err
			}
			return printTemplates(e, reg, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	return cmd
}

func printTemplates(e *env, reg lister, format string) error {
	list := reg.Templates()
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(e.stdout)
		defer enc.Close()
		return enc.Encode(list)
	case "table", "":
		w := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tLOCALES")
		for _, m := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Version, strings.Join(m.Locales, ","))
		}
		return w.Flush()
	}
	return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
}
