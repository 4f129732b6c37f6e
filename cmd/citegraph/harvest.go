package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citegraph/internal/corpus"
	"github.com/pdiddy/citegraph/internal/harvest"
	"github.com/pdiddy/citegraph/pkg/types"
)

const defaultHarvestDir = "citation_timeline"

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Fetch per-year citation timelines for every work in the corpus",
	Long: `Harvest walks the corpus identifiers in reverse row order and fetches each
work's citation timeline, trying the group-by-year, citation-timeline and
work endpoints in turn. Completed works are checkpointed to the wide table
after each success and failures are appended to the failure ledger, so an
interrupted run resumes where it stopped. Works already in either ledger are
skipped.`,
	RunE: runHarvest,
}

func init() {
	addCorpusFlags(harvestCmd)
	addHTTPFlags(harvestCmd)
	harvestCmd.Flags().String("out", defaultHarvestDir, "output directory for the wide table and ledgers")
	harvestCmd.Flags().String("metrics-file", "", "write request metrics in Prometheus text format to this file")

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ccfg, err := corpusConfig(cmd)
	if err != nil {
		return err
	}
	hcfg := httpConfig(cmd)
	bindFlags(cmd, map[string]string{"harvest.output_dir": "out"})
	cfg := types.HarvestConfig{
		HTTPConfig: hcfg,
		OutputDir:  dataPath(viper.GetString("harvest.output_dir")),
	}

	rows, stats, err := corpus.Load(ccfg, logger)
	if err != nil {
		return err
	}
	logger.Info().Str("corpus", ccfg.Path).Int("rows", stats.Rows).Int("kept", stats.Kept).
		Int("no_identifier", stats.NoIdentifier).Int("bad_refs", stats.BadRefs).Msg("corpus loaded")

	reg := prometheus.NewRegistry()
	h, err := harvest.Open(cfg, reg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	res, runErr := h.Run(ctx, corpus.HarvestOrder(rows), corpus.PubYears(rows))

	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("writing metrics file")
		}
	}

	completed, failed := h.Ledger().Len()
	t := newTable(cmd.OutOrStdout(), table.Row{"", "This run", "Ledger"}, 2, 3)
	t.AppendRow(table.Row{"Completed", res.Completed, completed})
	t.AppendRow(table.Row{"Failed", res.Failed, failed})
	t.AppendRow(table.Row{"Skipped", res.Skipped, ""})
	t.AppendFooter(table.Row{"Run " + res.RunID, res.Total(), completed + failed})
	t.Render()

	if runErr != nil {
		return runErr
	}
	if res.HasFailures() {
		return fmt.Errorf("%d work(s) failed harvest; see %s", res.Failed, harvest.FailureFile)
	}
	return nil
}
