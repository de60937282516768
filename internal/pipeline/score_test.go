package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

func fullInvoice() model.ParsedInvoice {
	return model.ParsedInvoice{
		VendorName:    "Acme Landscaping",
		InvoiceNumber: "INV-1042",
		InvoiceDate:   "2026-08-01",
		TotalAmount:   1500.00,
	}
}

func TestScore_PerfectInvoice(t *testing.T) {
	items := []model.ClassifiedLineItem{
		{Description: "Monthly mowing", Amount: 1000, Confidence: 1.0},
		{Description: "Tree trimming", Amount: 500, Confidence: 1.0},
	}
	// 0.15 + 0.15 + 0.20 + 0.50 = 1.0
	assert.InDelta(t, 1.0, Score(fullInvoice(), items), 0.001)
}

func TestScore_EmptyInvoice(t *testing.T) {
	assert.Equal(t, 0.0, Score(model.ParsedInvoice{}, nil))
}

func TestScore_ShortVendorNameGetsNoCredit(t *testing.T) {
	inv := fullInvoice()
	items := []model.ClassifiedLineItem{{Amount: 1500, Confidence: 1.0}}

	inv.VendorName = "ABC" // exactly 3 chars, no credit
	withShort := Score(inv, items)
	inv.VendorName = "ABCD"
	withLong := Score(inv, items)

	assert.InDelta(t, 0.15, withLong-withShort, 0.001)
}

func TestScore_PartialDetails(t *testing.T) {
	inv := model.ParsedInvoice{
		VendorName:    "Acme Landscaping",
		InvoiceNumber: "INV-1042",
		// no date, no total
	}
	// vendor 0.15 + details 0.15*(1/3) = 0.20; amount component skipped
	assert.InDelta(t, 0.20, Score(inv, nil), 0.001)
}

func TestScore_ZeroTotalSkipsAmountConsistency(t *testing.T) {
	inv := fullInvoice()
	inv.TotalAmount = 0
	items := []model.ClassifiedLineItem{{Amount: 999999, Confidence: 1.0}}

	// vendor 0.15 + details 0.15*(2/3) + items 0.50; no amount component,
	// and the wild line item sum must not produce NaN or a penalty.
	assert.InDelta(t, 0.75, Score(inv, items), 0.001)
}

func TestScore_AmountMismatchLowersScore(t *testing.T) {
	inv := fullInvoice()
	consistent := []model.ClassifiedLineItem{{Amount: 1500, Confidence: 0.9}}
	inconsistent := []model.ClassifiedLineItem{{Amount: 750, Confidence: 0.9}}

	assert.Greater(t, Score(inv, consistent), Score(inv, inconsistent))
}

func TestScore_AmountMismatchCappedAtFullRelativeError(t *testing.T) {
	inv := fullInvoice()
	// Sum wildly over total: relative error > 1 is capped, so the amount
	// component bottoms out at 0 rather than going negative.
	items := []model.ClassifiedLineItem{{Amount: 100000, Confidence: 1.0}}

	// vendor 0.15 + details 0.15 + amount 0 + items 0.50
	assert.InDelta(t, 0.80, Score(inv, items), 0.001)
}

func TestScore_MeanLineItemConfidence(t *testing.T) {
	inv := model.ParsedInvoice{}
	items := []model.ClassifiedLineItem{
		{Confidence: 0.4},
		{Confidence: 0.8},
	}
	// items component only: 0.50 * 0.6 = 0.30 (amount skipped, total is 0)
	assert.InDelta(t, 0.30, Score(inv, items), 0.001)
}

func TestScore_Deterministic(t *testing.T) {
	inv := fullInvoice()
	items := []model.ClassifiedLineItem{
		{Amount: 900, Confidence: 0.7},
		{Amount: 600, Confidence: 0.85},
	}
	first := Score(inv, items)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(inv, items))
	}
}

func TestScore_AlwaysInUnitInterval(t *testing.T) {
	cases := []struct {
		name  string
		inv   model.ParsedInvoice
		items []model.ClassifiedLineItem
	}{
		{"empty", model.ParsedInvoice{}, nil},
		{"full", fullInvoice(), []model.ClassifiedLineItem{{Amount: 1500, Confidence: 1.0}}},
		{"negative total", model.ParsedInvoice{TotalAmount: -100}, []model.ClassifiedLineItem{{Amount: 50, Confidence: 0.5}}},
		{"huge mismatch", fullInvoice(), []model.ClassifiedLineItem{{Amount: 1e9, Confidence: 1.0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Score(tc.inv, tc.items)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		})
	}
}

func TestBuildConfidenceBreakdown(t *testing.T) {
	items := []model.ClassifiedLineItem{
		{Description: "Mowing", Confidence: 0.9},
		{Description: "Trimming", Confidence: 0.6},
	}

	bd := BuildConfidenceBreakdown(0.82, items)

	assert.Equal(t, 0.82, bd.Overall)
	assert.Len(t, bd.LineItems, 2)
	assert.Equal(t, "Mowing", bd.LineItems[0].Description)
	assert.Equal(t, 0.9, bd.LineItems[0].Confidence)
	assert.Equal(t, "Trimming", bd.LineItems[1].Description)
}

func TestBuildConfidenceBreakdown_Empty(t *testing.T) {
	bd := BuildConfidenceBreakdown(0.5, nil)
	assert.Equal(t, 0.5, bd.Overall)
	assert.Empty(t, bd.LineItems)
}
