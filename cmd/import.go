package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestline-hoa/invoice-cli/internal/export"
)

var importAssocID string

var importCmd = &cobra.Command{
	Use:   "import <accounts.xlsx>",
	Short: "Import an association's chart of accounts from an XLSX file",
	Long:  "Reads GL accounts (columns: Code, Name, Category, Active) and bulk-loads them for the given association. Existing codes are updated.",
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

		accounts, err := export.ReadGLAccounts(args[0], importAssocID)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			return eris.Errorf("no GL accounts found in %s", args[0])
		}

		n, err := st.BulkInsertGLAccounts(ctx, accounts)
		if err != nil {
			return eris.Wrap(err, "import gl accounts")
		}

		zap.L().Info("gl accounts imported",
			zap.String("association_id", importAssocID),
			zap.Int64("rows", n),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importAssocID, "association", "", "association ID (required)")
	_ = importCmd.MarkFlagRequired("association")
	rootCmd.AddCommand(importCmd)
}
