package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citegraph/internal/harvest"
	"github.com/pdiddy/citegraph/internal/timeline"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check a harvest directory's raw payload log against its checkpoint table",
	Long: `Audit counts the payloads in the raw log, classifies each by timeline shape,
and compares the total with the completed and failed ledgers. It fails when
the checkpoint table lists more completed works than there are payloads.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().String("out", defaultHarvestDir, "harvest output directory")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, map[string]string{"harvest.output_dir": "out"})
	dir := dataPath(viper.GetString("harvest.output_dir"))

	a, err := harvest.AuditDir(dir)
	if err != nil {
		return err
	}

	t := newTable(cmd.OutOrStdout(), table.Row{"", "Count"}, 2)
	t.AppendRow(table.Row{"Completed", a.Completed})
	t.AppendRow(table.Row{"Failed", a.Failed})
	t.AppendRow(table.Row{"Payloads", a.Payloads})
	for _, s := range []timeline.Shape{timeline.ShapeCountsByYear, timeline.ShapeGroupBy, timeline.ShapeUnknown} {
		t.AppendRow(table.Row{"  " + string(s), a.Shapes[s]})
	}
	t.AppendFooter(table.Row{"Missing payloads", a.Missing()})
	t.Render()

	if !a.Consistent() {
		return fmt.Errorf("%d completed work(s) have no raw payload in %s", a.Missing(), dir)
	}
	return nil
}
