package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crestline-hoa/invoice-cli/internal/model"
	"github.com/crestline-hoa/invoice-cli/pkg/anthropic"
)

func TestExtractText_ReturnsVisionOutput(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		if req.Model != "claude-sonnet-4-5-20250929" || len(req.Messages) != 1 {
			return false
		}
		parts := req.Messages[0].Content
		return len(parts) == 2 &&
			parts[0].Type == anthropic.PartImage &&
			parts[0].ImageURL == "https://cdn.example.com/inv.png" &&
			parts[1].Type == anthropic.PartText
	})).Return(textResponse("ACME LANDSCAPING\nInvoice INV-1042"), nil)
	p := newTestPipeline(new(mockStore), ai)

	text, err := p.extractText(context.Background(), "https://cdn.example.com/inv.png")

	require.NoError(t, err)
	assert.Equal(t, "ACME LANDSCAPING\nInvoice INV-1042", text)
	ai.AssertExpectations(t)
}

func TestExtractText_EmptyResponseIsNotAnError(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(""), nil)
	p := newTestPipeline(new(mockStore), ai)

	text, err := p.extractText(context.Background(), "https://cdn.example.com/blank.png")

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractText_APIErrorIsOcrFailure(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("image fetch failed"))
	p := newTestPipeline(new(mockStore), ai)

	_, err := p.extractText(context.Background(), "https://cdn.example.com/inv.png")

	require.Error(t, err)
	assert.Equal(t, model.ErrKindOcr, model.KindOf(err))
}
