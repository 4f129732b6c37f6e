package main

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citegraph/internal/corpus"
	"github.com/pdiddy/citegraph/internal/graph"
	"github.com/pdiddy/citegraph/internal/harvest"
	"github.com/pdiddy/citegraph/pkg/types"
)

const defaultGraphDir = "citation_network"

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Assemble the global node and edge tables from the corpus",
	Long: `Build turns every corpus reference into an edge stamped with the citing
row's year and every distinct identifier into one node. Node citation totals
come from the harvested wide table (--citations timeline), the in-corpus
in-degree (--citations indegree), or are left at zero (--citations none).`,
	RunE: runBuild,
}

func init() {
	addCorpusFlags(buildCmd)
	f := buildCmd.Flags()
	f.String("out", defaultGraphDir, "output directory for nodes.csv and edges.csv")
	f.String("timeline", filepath.Join(defaultHarvestDir, harvest.WideTableFile), "wide citation table from harvest")
	f.String("citations", string(types.CitationsTimeline), "citation source: timeline, indegree, or none")
	f.String("duplicates", "first", "year kept for repeated identifiers: first or last")

	rootCmd.AddCommand(buildCmd)
}

func graphConfig(cmd *cobra.Command) types.GraphConfig {
	bindFlags(cmd, map[string]string{
		"graph.output_dir":    "out",
		"graph.timeline_path": "timeline",
		"graph.citations":     "citations",
	})
	return types.GraphConfig{
		OutputDir:    dataPath(viper.GetString("graph.output_dir")),
		TimelinePath: dataPath(viper.GetString("graph.timeline_path")),
		Citations:    types.CitationSource(viper.GetString("graph.citations")),
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	ccfg, err := corpusConfig(cmd)
	if err != nil {
		return err
	}
	cfg := graphConfig(cmd)

	var opts graph.AssembleOptions
	switch d, _ := cmd.Flags().GetString("duplicates"); d {
	case "first":
		opts.Duplicates = graph.KeepFirst
	case "last":
		opts.Duplicates = graph.KeepLast
	default:
		return fmt.Errorf("unknown --duplicates %q (want first or last)", d)
	}

	rows, stats, err := corpus.Load(ccfg, logger)
	if err != nil {
		return err
	}
	logger.Info().Str("corpus", ccfg.Path).Int("kept", stats.Kept).
		Int("no_identifier", stats.NoIdentifier).Int("bad_refs", stats.BadRefs).Msg("corpus loaded")

	var citations map[string]int
	switch cfg.Citations {
	case types.CitationsTimeline, "":
		citations, err = harvest.ReadTotals(cfg.TimelinePath)
		if err != nil {
			return fmt.Errorf("reading citation totals (use --citations indegree or none to skip): %w", err)
		}
	case types.CitationsInDegree, types.CitationsNone:
	default:
		return fmt.Errorf("unknown citation source %q", cfg.Citations)
	}

	g := graph.Assemble(rows, citations, opts)
	if cfg.Citations == types.CitationsInDegree {
		deg := graph.InDegree(g.Edges)
		for i := range g.Nodes {
			g.Nodes[i].TotalCitations = deg[g.Nodes[i].ID]
		}
	}
	for _, c := range g.Conflicts {
		logger.Warn().Str("id", c.ID).Int("kept_year", c.KeptYear).Int("other_year", c.OtherYear).
			Msg("duplicate identifier with conflicting years")
	}

	known := g.NodeIDs()
	external := 0
	for _, e := range g.Edges {
		if !known[e.Target] {
			external++
		}
	}
	logger.Info().Int("nodes", len(g.Nodes)).Int("edges", len(g.Edges)).
		Int("external_targets", external).Msg("graph assembled")

	if err := graph.WriteGraph(cfg.OutputDir, g); err != nil {
		return err
	}

	t := newTable(cmd.OutOrStdout(), table.Row{"Table", "Rows"}, 2)
	t.AppendRow(table.Row{filepath.Join(cfg.OutputDir, graph.NodesFile), len(g.Nodes)})
	t.AppendRow(table.Row{filepath.Join(cfg.OutputDir, graph.EdgesFile), len(g.Edges)})
	t.AppendFooter(table.Row{"Year conflicts", len(g.Conflicts)})
	t.Render()
	return nil
}
