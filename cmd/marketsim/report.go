package main

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vignesh-goutham/marketsim/pkg/dynamodb"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/report"
	"github.com/vignesh-goutham/marketsim/pkg/types"
)

var (
	runID        string
	showSnapshot bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show a stored simulation run",
	Long: `Load a simulation run saved in DynamoDB and print its summary and return
statistics. Runs are saved when store.table_name (or MARKETSIM_TABLE_NAME) is set.

Example:
  marketsim report --run-id 3f2c9a4e-...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.TableName == "" {
			return fmt.Errorf("no run table configured (store.table_name or MARKETSIM_TABLE_NAME)")
		}

		ctx := cmd.Context()
		store, err := dynamodb.NewService(ctx, cfg.Store.DynamoDBRegion, cfg.Store.TableName)
		if err != nil {
			return err
		}
		summary, snapshots, err := store.LoadRun(ctx, runID)
		if err != nil {
			return err
		}

		printSummary(os.Stdout, summary)
		if showSnapshot {
			printSnapshots(os.Stdout, snapshots)
		}

		if len(snapshots) < 2 {
			return nil
		}
		values := make([]decimal.Decimal, len(snapshots))
		for i, s := range snapshots {
			values[i] = s.TotalValue
		}
		stats, err := report.Compute(values, report.Options{
			RiskFreeRate:   cfg.Report.RiskFreeRate,
			SamplesPerYear: cfg.Report.SamplesPerYear,
		})
		if err != nil {
			return err
		}
		report.PrintStats(os.Stdout, stats, "", nil)
		return nil
	},
}

func printSummary(w io.Writer, summary *types.RunSummary) {
	fmt.Fprintf(w, "\n=== RUN %s ===\n", summary.RunID)
	fmt.Fprintf(w, "Status: %s\n", summary.Status)
	fmt.Fprintf(w, "Period: %s to %s (%d days)\n",
		summary.Start.Format(marketdata.DateLayout), summary.End.Format(marketdata.DateLayout), summary.Days)
	fmt.Fprintf(w, "Starting Cash: $%s\n", summary.StartingCash.StringFixed(2))
	fmt.Fprintf(w, "Final Value: $%s\n", summary.FinalValue.StringFixed(2))
	fmt.Fprintf(w, "Orders Executed: %d, Dropped: %d\n", summary.Executed, summary.Dropped)
	if summary.Status == types.RunStatusFailed {
		fmt.Fprintf(w, "Error (%s): %s\n", summary.ErrorKind, summary.Error)
	}
}

func printSnapshots(w io.Writer, snapshots []types.SnapshotRecord) {
	table := tablewriter.NewWriter(w)
	table.Header("Date", "Cash", "Longs", "Shorts", "Total Value", "Leverage")
	for _, s := range snapshots {
		table.Append(
			s.Date.Format(marketdata.DateLayout),
			s.Cash.StringFixed(2),
			s.Longs.StringFixed(2),
			s.Shorts.StringFixed(2),
			s.TotalValue.StringFixed(2),
			s.Leverage.StringFixed(4),
		)
	}
	table.Render()
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&runID, "run-id", "", "ID of the run to show")
	reportCmd.Flags().BoolVar(&showSnapshot, "snapshots", false, "Print the daily snapshots")
	reportCmd.MarkFlagRequired("run-id")
}
