package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect processing results",
}

// -- results list --

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processing results for an association",
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

		association, _ := cmd.Flags().GetString("association")
		limit, _ := cmd.Flags().GetInt("limit")

		results, err := st.ListResults(ctx, association, limit)
		if err != nil {
			return eris.Wrap(err, "results list")
		}

		if len(results) == 0 {
			fmt.Fprintln(os.Stderr, "No results found.")
			return nil
		}

		formatResultsList(os.Stdout, results)
		return nil
	},
}

// -- results show --

var resultsShowCmd = &cobra.Command{
	Use:   "show <result-id>",
	Short: "Show the full audit record of one result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		result, err := st.GetResult(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "results show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	resultsListCmd.Flags().String("association", "", "association ID (required)")
	resultsListCmd.Flags().Int("limit", 50, "max number of results to display")
	_ = resultsListCmd.MarkFlagRequired("association")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	rootCmd.AddCommand(resultsCmd)
}

// formatResultsList writes a tabular list of results to w.
func formatResultsList(out io.Writer, results []model.ProcessingResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tVENDOR\tINVOICE #\tTOTAL\tCONFIDENCE\tPROCESSED")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t-----\t----------\t---------")

	for _, r := range results {
		vendor := r.Invoice.VendorName
		if len(vendor) > 30 {
			vendor = vendor[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.3f\t%s\n",
			truncateID(r.ID),
			vendor,
			r.Invoice.InvoiceNumber,
			r.Invoice.TotalAmount,
			r.Confidence.Overall,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
