package pipeline

import (
	"math"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

// Confidence score component weights. These sum to 1.0 and feed the
// human-review routing threshold downstream, so they must not drift.
const (
	weightVendorClarity      = 0.15
	weightInvoiceDetails     = 0.15
	weightAmountConsistency  = 0.20
	weightLineItemConfidence = 0.50
)

// Score computes the overall extraction confidence for a parsed invoice and
// its classified line items. Pure function, deterministic, result in [0, 1].
//
// Components:
//   - vendor clarity: full credit when the vendor name is longer than 3 chars
//   - invoice details: fraction of {number, date, total>0} present
//   - amount consistency: 1 − min(|Σ items − total| / total, 1), skipped
//     entirely when the total is zero
//   - mean line-item confidence
func Score(inv model.ParsedInvoice, items []model.ClassifiedLineItem) float64 {
	var score float64

	if len(inv.VendorName) > 3 {
		score += weightVendorClarity
	}

	var details float64
	if inv.InvoiceNumber != "" {
		details++
	}
	if inv.InvoiceDate != "" {
		details++
	}
	if inv.TotalAmount > 0 {
		details++
	}
	score += weightInvoiceDetails * details / 3

	if inv.TotalAmount > 0 {
		var sum float64
		for _, it := range items {
			sum += it.Amount
		}
		relErr := math.Abs(sum-inv.TotalAmount) / inv.TotalAmount
		score += weightAmountConsistency * (1 - math.Min(relErr, 1))
	}

	if len(items) > 0 {
		var total float64
		for _, it := range items {
			total += it.Confidence
		}
		score += weightLineItemConfidence * total / float64(len(items))
	}

	return math.Max(0, math.Min(1, score))
}

// BuildConfidenceBreakdown assembles the audit breakdown: the overall score
// plus one entry per line item, in line-item order.
func BuildConfidenceBreakdown(overall float64, items []model.ClassifiedLineItem) model.ConfidenceBreakdown {
	breakdown := model.ConfidenceBreakdown{
		Overall:   overall,
		LineItems: make([]model.LineItemConfidence, 0, len(items)),
	}
	for _, it := range items {
		breakdown.LineItems = append(breakdown.LineItems, model.LineItemConfidence{
			Description: it.Description,
			Confidence:  it.Confidence,
		})
	}
	return breakdown
}
