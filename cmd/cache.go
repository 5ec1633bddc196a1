package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/misintel/misintel/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats <url>",
	Short: "Show whether a URL is cached and when it expires",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAnalysisCache(cmd.Context(), func(ac *cache.AnalysisCache) error {
			st, err := ac.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		})
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <url>",
	Short: "Drop the cached result for a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAnalysisCache(cmd.Context(), func(ac *cache.AnalysisCache) error {
			if err := ac.Invalidate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", cache.Key(args[0]))
			return nil
		})
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired entries from SQL-backed caches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAnalysisCache(cmd.Context(), func(ac *cache.AnalysisCache) error {
			n, err := ac.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired entries\n", n)
			return nil
		})
	},
}

func withAnalysisCache(ctx context.Context, fn func(*cache.AnalysisCache) error) error {
	if err := cfg.Validate("cache"); err != nil {
		return err
	}
	st, err := initStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	return fn(cache.NewAnalysisCache(st, time.Duration(cfg.Cache.BaseTTLHours)*time.Hour))
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheInvalidateCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
