// Package export writes processing results to XLSX workbooks and reads
// chart-of-accounts imports back in.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

var invoiceHeader = []string{
	"Result ID", "Queue ID", "Association", "Vendor", "Invoice #",
	"Invoice Date", "Due Date", "Total", "Confidence", "Processed At",
}

var lineItemHeader = []string{
	"Result ID", "Vendor", "Description", "Amount",
	"GL Account", "Category", "Confidence", "Property",
}

// WriteResults writes processed invoices to an XLSX workbook with two
// sheets: an invoice summary and one row per classified line item.
func WriteResults(path string, results []model.ProcessingResult) error {
	f := xlsx.NewFile()

	invSheet, err := f.AddSheet("Invoices")
	if err != nil {
		return eris.Wrap(err, "export: add invoices sheet")
	}
	itemSheet, err := f.AddSheet("Line Items")
	if err != nil {
		return eris.Wrap(err, "export: add line items sheet")
	}

	addRow(invSheet, invoiceHeader...)
	addRow(itemSheet, lineItemHeader...)

	for _, r := range results {
		inv := r.Invoice
		addRow(invSheet,
			r.ID,
			r.QueueID,
			r.AssociationID,
			inv.VendorName,
			inv.InvoiceNumber,
			inv.InvoiceDate,
			inv.DueDate,
			formatAmount(inv.TotalAmount),
			formatConfidence(inv.ConfidenceScore),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		)

		for _, it := range inv.LineItems {
			addRow(itemSheet,
				r.ID,
				inv.VendorName,
				it.Description,
				formatAmount(it.Amount),
				it.SuggestedGLAccount,
				it.SuggestedCategory,
				formatConfidence(it.Confidence),
				it.PropertyAssignment,
			)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// ReadGLAccounts parses a chart-of-accounts workbook. Expected columns:
// Code, Name, Category, Active (optional, defaults to true). The first row
// is treated as a header and skipped.
func ReadGLAccounts(path, associationID string) ([]model.GLAccount, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("export: %s has no sheets", path)
	}

	var accounts []model.GLAccount
	for i, row := range f.Sheets[0].Rows {
		if i == 0 {
			continue
		}
		cells := rowToStrings(row)
		if len(cells) < 2 || strings.TrimSpace(cells[0]) == "" {
			continue
		}

		a := model.GLAccount{
			AssociationID: associationID,
			Code:          strings.TrimSpace(cells[0]),
			Name:          strings.TrimSpace(cells[1]),
			Active:        true,
		}
		if len(cells) > 2 {
			a.Category = strings.TrimSpace(cells[2])
		}
		if len(cells) > 3 && cells[3] != "" {
			active, parseErr := strconv.ParseBool(strings.TrimSpace(cells[3]))
			if parseErr != nil {
				return nil, eris.Wrapf(parseErr, "export: row %d: bad active value %q", i+1, cells[3])
			}
			a.Active = active
		}
		accounts = append(accounts, a)
	}

	return accounts, nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatConfidence(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
