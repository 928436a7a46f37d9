package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/export"
)

// Export command flags
var (
	exportRemittancesOut string
	exportEventsOut      string
)

// ExportCmd is the parent command for parquet exports.
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export hub data to parquet",
	Long: `Commands for exporting hub data as parquet files for downstream
reporting and reconciliation.`,
}

// exportRemittancesCmd writes every remittance to a parquet file.
var exportRemittancesCmd = &cobra.Command{
	Use:   "remittances",
	Short: "Export remittances to a parquet file",
	Long:  `Write every recorded remittance to a parquet file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		n, err := export.Remittances(ctx, hub.Store, exportRemittancesOut)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d remittances to %s\n", n, exportRemittancesOut)
		return nil
	},
}

// exportEventsCmd writes every connector event to a parquet file.
var exportEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Export connector events to a parquet file",
	Long:  `Write every recorded connector event to a parquet file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		n, err := export.Events(ctx, hub.Store, exportEventsOut)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d events to %s\n", n, exportEventsOut)
		return nil
	},
}

func init() {
	exportRemittancesCmd.Flags().StringVarP(&exportRemittancesOut, "out", "o", "remittances.parquet", "Output file path")
	exportEventsCmd.Flags().StringVarP(&exportEventsOut, "out", "o", "events.parquet", "Output file path")

	ExportCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	ExportCmd.AddCommand(exportRemittancesCmd)
	ExportCmd.AddCommand(exportEventsCmd)
}
