// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citegraph/internal/graph"
	"github.com/pdiddy/citegraph/internal/graphdb"
	"github.com/pdiddy/citegraph/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load the graph and its yearly partitions into the SQLite index",
	Long: `Index imports nodes.csv, edges.csv, and every partition listed in the yearly
manifest into a SQLite database, replacing what was there. Use the query
subcommands to inspect it.`,
	RunE: runIndex,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the SQLite graph index",
}

var queryTopCmd = &cobra.Command{
	Use:   "top",
	Short: "List the most cited works, globally or within one year's partition",
	RunE:  runQueryTop,
}

var queryYearsCmd = &cobra.Command{
	Use:   "years",
	Short: "Summarize every indexed partition",
	RunE:  runQueryYears,
}

func init() {
	indexCmd.Flags().String("graph-dir", defaultGraphDir, "directory holding the graph tables and yearly/")
	addDBFlag(indexCmd)

	addDBFlag(queryTopCmd)
	queryTopCmd.Flags().Int("year", 0, "partition year (0 for the global node table)")
	queryTopCmd.Flags().IntP("limit", "n", 10, "number of works")

	addDBFlag(queryYearsCmd)
	queryYearsCmd.Flags().String("export", "", "also write the summaries to this file (.json or .yaml)")

	queryCmd.AddCommand(queryTopCmd, queryYearsCmd)
	rootCmd.AddCommand(indexCmd, queryCmd)
}

func addDBFlag(cmd *cobra.Command) {
	cmd.Flags().String("db", graphdb.DefaultDBFile, "SQLite index file")
}

func openIndex(cmd *cobra.Command) (*graphdb.Store, error) {
	bindFlags(cmd, map[string]string{"index.db_path": "db"})
	return graphdb.NewStore(types.IndexConfig{DBPath: dataPath(viper.GetString("index.db_path"))})
}

func runIndex(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, map[string]string{"graph.output_dir": "graph-dir"})
	dir := dataPath(viper.GetString("graph.output_dir"))

	g, err := graph.ReadGraph(dir)
	if err != nil {
		return err
	}
	parts, err := graph.ReadPartitions(dir)
	if err != nil {
		return err
	}

	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.ImportGraph(ctx, g); err != nil {
		return err
	}
	if err := store.ImportPartitions(ctx, parts); err != nil {
		return err
	}
	logger.Info().Str("db", store.Path()).Int("nodes", len(g.Nodes)).Int("edges", len(g.Edges)).
		Int("years", len(parts)).Msg("index updated")
	return printSummaries(cmd, store, "")
}

func runQueryTop(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	nodes, err := store.TopCited(context.Background(), year, limit)
	if err != nil {
		return err
	}
	t := newTable(cmd.OutOrStdout(), table.Row{"#", "Work", "Year", "Citations", "Synthesized"}, 1, 3, 4)
	for i, n := range nodes {
		y := ""
		if n.HasYear() {
			y = strconv.Itoa(n.Year)
		}
		t.AppendRow(table.Row{i + 1, n.ID, y, n.TotalCitations, n.Synthesized})
	}
	t.Render()
	return nil
}

func runQueryYears(cmd *cobra.Command, args []string) error {
	export, _ := cmd.Flags().GetString("export")
	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	return printSummaries(cmd, store, export)
}

func printSummaries(cmd *cobra.Command, store *graphdb.Store, export string) error {
	ctx := context.Background()
	summaries, err := store.YearSummaries(ctx)
	if err != nil {
		return err
	}
	t := newTable(cmd.OutOrStdout(), table.Row{"Year", "Nodes", "Edges", "Synthesized", "Dangling"}, 2, 3, 4, 5)
	for _, s := range summaries {
		dangling, err := store.DanglingEdges(ctx, s.Year)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{s.Year, s.Nodes, s.Edges, s.Synthesized, len(dangling)})
	}
	t.Render()

	if export != "" {
		if err := store.ExportSummaries(ctx, export); err != nil {
			return err
		}
		logger.Info().Str("path", export).Msg("summaries exported")
	}
	return nil
}
