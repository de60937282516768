package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/crestline-hoa/invoice-cli/internal/model"
	"github.com/crestline-hoa/invoice-cli/pkg/anthropic"
)

// extractText sends the invoice image to the vision model and returns the
// raw extracted text. Any transport or model error is fatal for the run.
func (p *Pipeline) extractText(ctx context.Context, imageURL string) (string, error) {
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()

	resp, err := p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.VisionModel,
		MaxTokens: p.cfg.Anthropic.OCRMaxTokens,
		Messages: []anthropic.Message{
			anthropic.VisionMessage(imageURL, p.prompts.Extract),
		},
	})
	if err != nil {
		return "", model.OcrFailure(eris.Wrap(err, "extract: vision call"))
	}
	resp.Usage.LogCost(p.cfg.Anthropic.VisionModel, "extract")

	return anthropic.Text(resp), nil
}
