package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/crestline-hoa/invoice-cli/internal/model"
	"github.com/crestline-hoa/invoice-cli/pkg/anthropic"
)

const parseMaxTokens = 2048

// parseStructure turns raw OCR text into a ParsedInvoice. The system prompt
// pins the JSON schema; unparseable output is fatal for the run. Fields the
// model leaves out stay at their zero values.
func (p *Pipeline) parseStructure(ctx context.Context, rawText string) (*model.ParsedInvoice, error) {
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()

	resp, err := p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.Model,
		MaxTokens: parseMaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(p.prompts.Parse),
		Messages: []anthropic.Message{
			anthropic.TextMessage("user", rawText),
		},
	})
	if err != nil {
		return nil, model.ParseFailure(eris.Wrap(err, "parse: completion call"))
	}
	resp.Usage.LogCost(p.cfg.Anthropic.Model, "parse")

	text := anthropic.CleanJSON(anthropic.Text(resp))

	var inv model.ParsedInvoice
	if err := json.Unmarshal([]byte(text), &inv); err != nil {
		return nil, model.ParseFailure(eris.Wrap(err, "parse: unmarshal invoice"))
	}
	inv.Normalize()

	return &inv, nil
}
