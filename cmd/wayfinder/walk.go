package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/i18n"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/navigation"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/scenario"
)

const (
	outputText = "text"
	outputYAML = "yaml"
)

func newWalkCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "walk <scenario.yaml>",
		Short: "Run a scenario and report every step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputText && output != outputYAML {
				return fmt.Errorf("unknown output format %q", output)
			}

			f, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			if f.DefaultLifetime == "" {
				f.DefaultLifetime = a.cfg.DefaultLifetime
			}

			report, svc, err := scenario.Run(cmd.Context(), f, navigation.WithDisposeOnRemove(a.cfg.DisposeOnRemove))
			if err != nil {
				return err
			}
			defer svc.Close()

			if output == outputYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(report); err != nil {
					return err
				}
				return enc.Close()
			}

			loc, err := i18n.New(a.cfg.LanguageTag())
			if err != nil {
				return err
			}
			writeReport(cmd.OutOrStdout(), loc, report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "report format: text or yaml")
	return cmd
}

// writeReport prints a report as localized text.
func writeReport(w io.Writer, loc *i18n.Localizer, r *scenario.Report) {
	fmt.Fprintf(w, "service %s\n", r.Service)
	for _, st := range r.Steps {
		fmt.Fprintf(w, "%3d  %-28s %s\n", st.Index, st.Step, loc.Result(st.Result))
		fmt.Fprintf(w, "     at %s, %s\n", st.Current, loc.Entries(len(st.History)))
		if len(st.Hooks) > 0 {
			fmt.Fprintf(w, "     hooks %s\n", strings.Join(st.Hooks, " "))
		}
		for _, m := range st.Modals {
			fmt.Fprintf(w, "     modal %s\n", m)
		}
	}
}
