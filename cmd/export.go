package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestline-hoa/invoice-cli/internal/export"
)

var (
	exportAssocID string
	exportOutput  string
	exportLimit   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export processing results to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		results, err := st.ListResults(ctx, exportAssocID, exportLimit)
		if err != nil {
			return eris.Wrap(err, "export: list results")
		}

		if err := export.WriteResults(exportOutput, results); err != nil {
			return err
		}

		zap.L().Info("results exported",
			zap.String("path", exportOutput),
			zap.Int("results", len(results)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportAssocID, "association", "", "association ID (required)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "results.xlsx", "output file path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "max number of results to export")
	_ = exportCmd.MarkFlagRequired("association")
	rootCmd.AddCommand(exportCmd)
}
