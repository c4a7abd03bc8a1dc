// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/diligence-engine/internal/correlate"
	"github.com/pdiddy/diligence-engine/internal/search"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate [entity name]",
	Short: "Profile an entity's activity across jurisdictions",
	Long: `Correlate searches every year of a window (default: the last ten years),
merges the results, and reports which jurisdiction acted first, how spending
compares across levels, a composite score with its breakdown, and a strategy
label from a fixed decision table.

With --historical a single unfiltered search covers every year the
providers publish.`,
	RunE: runCorrelate,
}

func init() {
	correlateCmd.Flags().String("entity", "", "entity name to profile")
	correlateCmd.Flags().Bool("historical", false, "search all years instead of a window")
	correlateCmd.Flags().Int("from-year", 0, "first year of the window")
	correlateCmd.Flags().Int("to-year", 0, "last year of the window (default: current year)")
	correlateCmd.Flags().Bool("json", false, "output the profile as JSON")

	rootCmd.AddCommand(correlateCmd)
}

func runCorrelate(cmd *cobra.Command, args []string) error {
	entity, _ := cmd.Flags().GetString("entity")
	if entity == "" && len(args) > 0 {
		entity = strings.Join(args, " ")
	}
	if strings.TrimSpace(entity) == "" {
		return fmt.Errorf("provide an entity name with --entity or as arguments")
	}
	historical, _ := cmd.Flags().GetBool("historical")
	from, _ := cmd.Flags().GetInt("from-year")
	to, _ := cmd.Flags().GetInt("to-year")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.service.Profile(ctx, types.CorrelationRequest{
		EntityName:        entity,
		IncludeHistorical: historical,
		StartYear:         from,
		EndYear:           to,
	})
	if p == nil {
		return err
	}

	if jsonOutput {
		if perr := correlate.FormatProfileJSON(p, os.Stdout); perr != nil {
			return perr
		}
	} else {
		correlate.FormatProfile(p, os.Stdout)
	}
	if errors.Is(err, search.ErrAllSourcesFailed) {
		return fmt.Errorf("profile degraded: %w", err)
	}
	return err
}
