package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries the resolved configuration to the subcommands.
type app struct {
	configFile string
	cfg        wayfinder.Config
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: wayfinder.DefaultConfig()}

	root := &cobra.Command{
		Use:           "wayfinder",
		Short:         "Wayfinder drives scripted navigation walks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := loadConfig(cmd, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			wayfinder.Init(cfg.Options())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			wayfinder.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (.toml, .yaml or .yml)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("locale", "", "BCP-47 locale for report text")

	root.AddCommand(newWalkCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wayfinder version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "wayfinder", version)
		},
	}
}
