// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/diligence-engine/internal/cache"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached result of one search or correlation profile",
	Long: `Clear deletes the cached result for the search described by the flags,
so the next identical search queries the providers again.

With --entity it deletes the cached correlation profile instead; --historical,
--from-year, and --to-year select the window as for correlate.`,
	RunE: runCacheClear,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired entries from the cache backend",
	RunE:  runCachePurge,
}

func init() {
	cacheClearCmd.Flags().String("query", "", "entity name of the cached search")
	cacheClearCmd.Flags().Int("year", 0, "year of the cached search")
	cacheClearCmd.Flags().String("jurisdiction", "", "jurisdiction of the cached search")
	cacheClearCmd.Flags().StringSlice("sources", nil, "source subset of the cached search")
	cacheClearCmd.Flags().Int("max-results", 0, "per-source limit of the cached search")
	cacheClearCmd.Flags().String("entity", "", "entity name of the cached correlation profile")
	cacheClearCmd.Flags().Bool("historical", false, "profile covers all years")
	cacheClearCmd.Flags().Int("from-year", 0, "first year of the cached profile")
	cacheClearCmd.Flags().Int("to-year", 0, "last year of the cached profile")
	cacheClearCmd.MarkFlagsMutuallyExclusive("query", "entity")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.cache == nil {
		return fmt.Errorf("cache backend %q keeps nothing to clear", cfg.Cache.Backend)
	}

	var key string
	if entity, _ := cmd.Flags().GetString("entity"); entity != "" {
		key, err = profileKeyFromFlags(cmd, a, entity)
	} else {
		key, err = searchKeyFromFlags(cmd, args, a)
	}
	if err != nil {
		return err
	}
	if err := a.cache.Delete(ctx, key); err != nil {
		return err
	}
	fmt.Printf("Cleared %s\n", key)
	return nil
}

func searchKeyFromFlags(cmd *cobra.Command, args []string, a *app) (string, error) {
	req, err := searchRequestFromFlags(cmd, args)
	if err != nil {
		return "", err
	}
	req = req.Normalize()
	ids, err := a.orch.SourceIDs(req)
	if err != nil {
		return "", err
	}
	return cache.SearchKey(req, ids)
}

func profileKeyFromFlags(cmd *cobra.Command, a *app, entity string) (string, error) {
	historical, _ := cmd.Flags().GetBool("historical")
	from, _ := cmd.Flags().GetInt("from-year")
	to, _ := cmd.Flags().GetInt("to-year")
	return a.service.CacheKey(types.CorrelationRequest{
		EntityName:        entity,
		IncludeHistorical: historical,
		StartYear:         from,
		EndYear:           to,
	})
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.cache.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d expired entries\n", n)
	return nil
}
