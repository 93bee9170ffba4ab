package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dgnsrekt/tunebox/internal/cache"
	"github.com/dgnsrekt/tunebox/internal/render"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the cache configuration and metrics endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		set, err := cache.NewSet(cfg.CacheSet())
		if err != nil {
			return err
		}
		defer func() { _ = set.Shutdown(context.Background()) }()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, render.CacheStats(set.Stats(), time.Now()))
		fmt.Fprintf(out, "\nJanitor: every %s\n", cfg.Cache.CleanupInterval)
		if cfg.Metrics.Enabled {
			fmt.Fprintf(out, "Metrics: http://%s/metrics\n", cfg.Metrics.Listen)
		} else {
			fmt.Fprintln(out, "Metrics: disabled (enable with --metrics or metrics.enabled)")
		}
		return nil
	},
}
