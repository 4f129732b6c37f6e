package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citegraph/internal/graph"
)

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Slice the global graph into per-year node and edge tables",
	Long: `Partition reads nodes.csv and edges.csv, groups edges by the citing work's
year, and writes one node and one edge table per year under yearly/. Edge
endpoints missing from a year's node table are added as synthesized nodes
(year set to the partition year, zero citations) unless --no-repair is set.
Unrepaired output is marked "closed: false" in yearly/manifest.yaml with a
per-year dangling count.`,
	RunE: runPartition,
}

func init() {
	partitionCmd.Flags().String("graph-dir", defaultGraphDir, "directory holding nodes.csv and edges.csv")
	partitionCmd.Flags().Bool("no-repair", false, "leave dangling edge endpoints unrepaired")

	rootCmd.AddCommand(partitionCmd)
}

func runPartition(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, map[string]string{"graph.output_dir": "graph-dir"})
	dir := dataPath(viper.GetString("graph.output_dir"))
	noRepair, _ := cmd.Flags().GetBool("no-repair")

	g, err := graph.ReadGraph(dir)
	if err != nil {
		return err
	}
	parts := graph.Partition(g)
	if !noRepair {
		for i := range parts {
			added := graph.Repair(&parts[i])
			if len(added) > 0 {
				logger.Debug().Int("year", parts[i].Year).Strs("ids", added).Msg("synthesized missing nodes")
			}
		}
	}

	m, err := graph.WritePartitions(dir, parts)
	if err != nil {
		return err
	}
	logger.Info().Str("dir", dir).Int("years", len(m.Years)).Bool("closed", m.Closed).Msg("partitions written")
	if !m.Closed {
		logger.Warn().Msg("yearly tables contain edges whose endpoints have no node; manifest marks them closed: false")
	}

	t := newTable(cmd.OutOrStdout(), table.Row{"Year", "Edges", "Nodes", "Synthesized", "Dangling"}, 2, 3, 4, 5)
	var edges, nodes, repaired, dangling int
	for _, e := range m.Years {
		t.AppendRow(table.Row{e.Year, e.Edges, e.Nodes, e.Repaired, e.Dangling})
		edges += e.Edges
		nodes += e.Nodes
		repaired += e.Repaired
		dangling += e.Dangling
	}
	t.AppendFooter(table.Row{"Total", edges, nodes, repaired, dangling})
	t.Render()
	return nil
}
