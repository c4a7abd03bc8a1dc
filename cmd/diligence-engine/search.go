// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/diligence-engine/internal/search"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [entity name]",
	Short: "Search every configured source for an entity",
	Long: `Search queries every configured lobbying and contract source in parallel,
drops hits that do not name the queried entity, and prints one merged,
deduplicated result set with the status of every source.

A source that times out or fails is reported but does not fail the search.
The command exits non-zero only when every source failed.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("query", "", "entity name to search for")
	searchCmd.Flags().Int("year", 0, "restrict to one calendar year")
	searchCmd.Flags().String("jurisdiction", "", "restrict to federal, state, or local sources")
	searchCmd.Flags().StringSlice("sources", nil, "restrict to these source IDs (comma-separated)")
	searchCmd.Flags().Int("max-results", 0, "maximum records requested per source (0 = source default)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().String("save", "", "also write the result to a YAML query file")
	searchCmd.Flags().String("load", "", "print a previously saved query file instead of searching")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if path, _ := cmd.Flags().GetString("load"); path != "" {
		qf, err := search.ReadQueryFile(path)
		if err != nil {
			return err
		}
		return printSearch(qf.Result(), jsonOutput)
	}

	req, err := searchRequestFromFlags(cmd, args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orch.Search(ctx, req)
	if res == nil {
		return err
	}
	if perr := printSearch(res, jsonOutput); perr != nil {
		return perr
	}
	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if werr := search.WriteQueryFile(path, res); werr != nil {
			return werr
		}
		fmt.Fprintln(os.Stderr, "Saved to", path)
	}
	if errors.Is(err, search.ErrAllSourcesFailed) {
		return fmt.Errorf("search degraded: %w", err)
	}
	return err
}

func searchRequestFromFlags(cmd *cobra.Command, args []string) (types.SearchRequest, error) {
	query, _ := cmd.Flags().GetString("query")
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}
	if strings.TrimSpace(query) == "" {
		return types.SearchRequest{}, fmt.Errorf("provide an entity name with --query or as arguments")
	}

	year, _ := cmd.Flags().GetInt("year")
	sources, _ := cmd.Flags().GetStringSlice("sources")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	req := types.SearchRequest{Query: query, Year: year, Sources: sources, MaxResults: maxResults}

	if j, _ := cmd.Flags().GetString("jurisdiction"); j != "" {
		parsed, err := types.ParseJurisdiction(j)
		if err != nil {
			return req, err
		}
		req.Jurisdiction = parsed
	}
	return req, nil
}

func printSearch(res *types.SearchResult, jsonOutput bool) error {
	if jsonOutput {
		return search.FormatJSON(res, os.Stdout)
	}
	search.FormatTable(res, os.Stdout)
	return nil
}
