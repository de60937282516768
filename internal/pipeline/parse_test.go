package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

func TestParseStructure_HappyPath(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{
		"vendor_name": "  Acme Landscaping ",
		"invoice_number": "INV-1042",
		"invoice_date": "2026-08-01",
		"due_date": "2026-08-31",
		"total_amount": 1500.00,
		"line_items": [
			{"description": "Monthly mowing", "quantity": 4, "unit_price": 250, "amount": 1000},
			{"description": "Tree trimming", "quantity": 1, "unit_price": 500, "amount": 500}
		]
	}`), nil)
	p := newTestPipeline(new(mockStore), ai)

	inv, err := p.parseStructure(context.Background(), "raw invoice text")

	require.NoError(t, err)
	assert.Equal(t, "Acme Landscaping", inv.VendorName) // trimmed
	assert.Equal(t, "INV-1042", inv.InvoiceNumber)
	assert.Equal(t, 1500.00, inv.TotalAmount)
	require.Len(t, inv.LineItems, 2)
	assert.Equal(t, 250.0, inv.LineItems[0].UnitPrice)
}

func TestParseStructure_FencedJSONAccepted(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("```json\n{\"vendor_name\": \"Acme\", \"total_amount\": 42}\n```"), nil)
	p := newTestPipeline(new(mockStore), ai)

	inv, err := p.parseStructure(context.Background(), "text")

	require.NoError(t, err)
	assert.Equal(t, "Acme", inv.VendorName)
	assert.Equal(t, 42.0, inv.TotalAmount)
}

func TestParseStructure_MissingFieldsDefaultToZero(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"vendor_name": "Acme"}`), nil)
	p := newTestPipeline(new(mockStore), ai)

	inv, err := p.parseStructure(context.Background(), "text")

	require.NoError(t, err)
	assert.Empty(t, inv.InvoiceNumber)
	assert.Empty(t, inv.InvoiceDate)
	assert.Zero(t, inv.TotalAmount)
	assert.Empty(t, inv.LineItems)
}

func TestParseStructure_UnparseableOutputIsParseFailure(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("I could not read this invoice, sorry."), nil)
	p := newTestPipeline(new(mockStore), ai)

	inv, err := p.parseStructure(context.Background(), "text")

	require.Error(t, err)
	assert.Nil(t, inv)
	assert.Equal(t, model.ErrKindParse, model.KindOf(err))
}

func TestParseStructure_APIErrorIsParseFailure(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("overloaded"))
	p := newTestPipeline(new(mockStore), ai)

	_, err := p.parseStructure(context.Background(), "text")

	require.Error(t, err)
	assert.Equal(t, model.ErrKindParse, model.KindOf(err))
}
