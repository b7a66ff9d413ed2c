package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/inspect"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/metrics"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/navigation"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/scenario"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <scenario.yaml>...",
		Short: "Run scenarios and serve the resulting services over HTTP",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dir, gatherer, err := a.populate(ctx, args)
			if err != nil {
				return err
			}
			defer dir.Close()

			logger := wayfinder.GetLogger()
			opts := []inspect.Option{inspect.WithLogger(logger)}
			if gatherer != nil {
				opts = append(opts, inspect.WithGatherer(gatherer))
			}
			engine, err := inspect.New(dir, opts...)
			if err != nil {
				return err
			}
			return inspect.Serve(ctx, a.cfg.Inspect.Addr, engine, logger)
		},
	}

	cmd.Flags().String("addr", wayfinder.DefaultInspectAddr, "inspector listen address")
	cmd.Flags().Bool("metrics", false, "expose prometheus metrics on /metrics")
	return cmd
}

// populate runs every scenario into a fresh directory. The gatherer is nil
// unless metrics are enabled.
func (a *app) populate(ctx context.Context, paths []string) (*navigation.Directory, prometheus.Gatherer, error) {
	opts := []navigation.ServiceOption{navigation.WithDisposeOnRemove(a.cfg.DisposeOnRemove)}

	var gatherer prometheus.Gatherer
	if a.cfg.Metrics.Enabled {
		collector := metrics.New(a.cfg.Metrics.Namespace)
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector, collectors.NewGoCollector())
		opts = append(opts, navigation.WithObserver(collector))
		gatherer = reg
	}

	dir := navigation.NewDirectory()
	for _, path := range paths {
		f, err := scenario.Load(path)
		if err != nil {
			return nil, nil, errors.Join(err, dir.Close())
		}
		if f.DefaultLifetime == "" {
			f.DefaultLifetime = a.cfg.DefaultLifetime
		}

		report, svc, err := scenario.Run(ctx, f, opts...)
		if err != nil {
			return nil, nil, errors.Join(err, dir.Close())
		}
		if err := dir.Register(svc); err != nil {
			return nil, nil, errors.Join(err, svc.Close(), dir.Close())
		}
		wayfinder.GetLogger().Info("scenario loaded",
			"path", path,
			"service", svc.ID(),
			"steps", len(report.Steps),
			"current", svc.CurrentID(),
		)
	}
	return dir, gatherer, nil
}
