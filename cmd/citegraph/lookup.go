package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citegraph/internal/corpus"
	"github.com/pdiddy/citegraph/internal/httputil"
	"github.com/pdiddy/citegraph/internal/lookup"
	"github.com/pdiddy/citegraph/pkg/types"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Resolve corpus titles to scholarly-graph works",
	Long: `Lookup searches the works API by title for every corpus row and appends one
row per title (identifier, DOI, citation count, year, references) to the
output CSV. Progress is saved after each row, so a rerun resumes at the next
unresolved title. Titles that are not found or fail are written as empty rows.`,
	RunE: runLookup,
}

func init() {
	addCorpusFlags(lookupCmd)
	addHTTPFlags(lookupCmd)
	lookupCmd.Flags().String("out", "openalex_lookup.csv", "enriched output CSV")
	lookupCmd.Flags().String("progress", "openalex_lookup.progress.json", "resume checkpoint")

	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ccfg, err := corpusConfig(cmd)
	if err != nil {
		return err
	}
	hcfg := httpConfig(cmd)
	bindFlags(cmd, map[string]string{
		"lookup.output_path":   "out",
		"lookup.progress_path": "progress",
	})
	cfg := types.LookupConfig{
		HTTPConfig:   hcfg,
		OutputPath:   dataPath(viper.GetString("lookup.output_path")),
		ProgressPath: dataPath(viper.GetString("lookup.progress_path")),
	}

	titles, err := corpus.ReadTitles(ccfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	r := lookup.NewResolver(httputil.NewClient(cfg.HTTPConfig, logger), logger)
	res, runErr := r.Run(ctx, titles, cfg)

	t := newTable(cmd.OutOrStdout(), table.Row{"Outcome", "Titles"}, 2)
	t.AppendRow(table.Row{"Found", res.Found})
	t.AppendRow(table.Row{"Not found", res.NotFound})
	t.AppendRow(table.Row{"Failed", res.Failed})
	t.AppendFooter(table.Row{fmt.Sprintf("Rows %d..%d of %d", res.Start+1, res.Start+res.Total(), len(titles)), res.Total()})
	t.Render()

	if runErr != nil {
		return runErr
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d title(s) failed lookup", res.Failed)
	}
	return nil
}
