package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestline-hoa/invoice-cli/internal/pipeline"
)

var (
	processImageURL  string
	processAssocID   string
	processInvoiceID string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single invoice image",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		invoice, err := env.Pipeline.Run(ctx, pipeline.Request{
			ImageURL:      processImageURL,
			AssociationID: processAssocID,
			InvoiceID:     processInvoiceID,
		})
		if err != nil {
			return eris.Wrap(err, "process invoice")
		}

		zap.L().Info("invoice processed",
			zap.String("vendor", invoice.VendorName),
			zap.Float64("confidence", invoice.ConfidenceScore),
			zap.Int("line_items", len(invoice.LineItems)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(invoice)
	},
}

func init() {
	processCmd.Flags().StringVar(&processImageURL, "image-url", "", "invoice image URL (required)")
	processCmd.Flags().StringVar(&processAssocID, "association", "", "association ID (required)")
	processCmd.Flags().StringVar(&processInvoiceID, "invoice-id", "", "external invoice ID")
	_ = processCmd.MarkFlagRequired("image-url")
	_ = processCmd.MarkFlagRequired("association")
	rootCmd.AddCommand(processCmd)
}
