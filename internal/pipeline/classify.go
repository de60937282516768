package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/crestline-hoa/invoice-cli/internal/model"
	"github.com/crestline-hoa/invoice-cli/pkg/anthropic"
)

const classifyMaxTokens = 2048

const (
	fallbackCategory   = "Unknown"
	fallbackConfidence = 0.5
)

// classifiedItemPayload mirrors the JSON the classify prompt requests.
// The index echoes the input item's position so output can be re-keyed
// even when the model reorders items.
type classifiedItemPayload struct {
	Index              *int    `json:"index"`
	Description        string  `json:"description"`
	Amount             float64 `json:"amount"`
	SuggestedGLAccount string  `json:"suggested_gl_account"`
	SuggestedCategory  string  `json:"suggested_category"`
	Confidence         float64 `json:"confidence"`
	PropertyAssignment string  `json:"property_assignment"`
}

type classifyPayload struct {
	ClassifiedItems []classifiedItemPayload `json:"classified_items"`
}

// classifyLineItems assigns a GL account, category, and confidence to each
// line item. Fail-open: any API or decode error falls back to one default
// entry per input item so a classifier outage never blocks ingestion. The
// returned slice always has exactly one entry per input item, in input order.
func (p *Pipeline) classifyLineItems(ctx context.Context, items []model.RawLineItem, actx model.AssociationContext) []model.ClassifiedLineItem {
	if len(items) == 0 {
		return []model.ClassifiedLineItem{}
	}

	systemPrompt := fmt.Sprintf(p.prompts.Classify, glAccountListing(actx.GLAccounts), vendorHints(actx.VendorPatterns))

	var sb strings.Builder
	sb.WriteString("Line items to classify:\n")
	for i, it := range items {
		fmt.Fprintf(&sb, "%d. %s — $%.2f\n", i, it.Description, it.Amount)
	}

	callCtx, cancel := p.callCtx(ctx)
	defer cancel()

	resp, err := p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.Model,
		MaxTokens: classifyMaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages: []anthropic.Message{
			anthropic.TextMessage("user", sb.String()),
		},
	})
	if err != nil {
		zap.L().Warn("classify: completion call failed, using fallback classifications",
			zap.Int("line_items", len(items)),
			zap.Error(err),
		)
		return fallbackClassifications(items)
	}
	resp.Usage.LogCost(p.cfg.Anthropic.Model, "classify")

	payload, err := decodeClassifyPayload(anthropic.Text(resp))
	if err != nil {
		zap.L().Warn("classify: malformed model output, using fallback classifications",
			zap.Int("line_items", len(items)),
			zap.Error(err),
		)
		return fallbackClassifications(items)
	}

	return reconcile(items, payload.ClassifiedItems)
}

func decodeClassifyPayload(text string) (*classifyPayload, error) {
	var payload classifyPayload
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(text)), &payload); err != nil {
		return nil, eris.Wrap(err, "classify: unmarshal")
	}
	return &payload, nil
}

// reconcile re-keys the model's output to the input line items. The model
// is asked to echo each item's index, but its output order and count are
// not trusted: items are matched by index first, then by normalized
// description + amount, and any input item left unmatched gets a fallback
// entry. The result preserves input order and count exactly, which the
// scorer's positional breakdown depends on.
func reconcile(items []model.RawLineItem, classified []classifiedItemPayload) []model.ClassifiedLineItem {
	matched := make([]*classifiedItemPayload, len(items))
	used := make([]bool, len(classified))

	// Pass 1: trust echoed indexes that are in range and unclaimed.
	for ci := range classified {
		c := &classified[ci]
		if c.Index == nil {
			continue
		}
		i := *c.Index
		if i >= 0 && i < len(items) && matched[i] == nil {
			matched[i] = c
			used[ci] = true
		}
	}

	// Pass 2: match leftovers by normalized description + amount.
	for ci := range classified {
		if used[ci] {
			continue
		}
		c := &classified[ci]
		key := itemKey(c.Description, c.Amount)
		for i, it := range items {
			if matched[i] == nil && itemKey(it.Description, it.Amount) == key {
				matched[i] = c
				used[ci] = true
				break
			}
		}
	}

	out := make([]model.ClassifiedLineItem, len(items))
	for i, it := range items {
		c := matched[i]
		if c == nil {
			out[i] = fallbackItem(it)
			continue
		}
		out[i] = model.ClassifiedLineItem{
			// Description and amount come from the parsed invoice, not the
			// model echo, so the audit record always reflects the source.
			Description:        it.Description,
			Amount:             it.Amount,
			SuggestedGLAccount: strings.TrimSpace(c.SuggestedGLAccount),
			SuggestedCategory:  strings.TrimSpace(c.SuggestedCategory),
			Confidence:         clamp01(c.Confidence),
			PropertyAssignment: strings.TrimSpace(c.PropertyAssignment),
		}
	}
	return out
}

func itemKey(description string, amount float64) string {
	// cases.Caser is stateful, so a fresh one per call.
	return fmt.Sprintf("%s|%.2f", cases.Fold().String(strings.TrimSpace(description)), amount)
}

func fallbackClassifications(items []model.RawLineItem) []model.ClassifiedLineItem {
	out := make([]model.ClassifiedLineItem, len(items))
	for i, it := range items {
		out[i] = fallbackItem(it)
	}
	return out
}

func fallbackItem(it model.RawLineItem) model.ClassifiedLineItem {
	return model.ClassifiedLineItem{
		Description:       it.Description,
		Amount:            it.Amount,
		SuggestedCategory: fallbackCategory,
		Confidence:        fallbackConfidence,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// glAccountListing renders the chart of accounts as "code: name (category)"
// lines for the classify prompt.
func glAccountListing(accounts []model.GLAccount) string {
	if len(accounts) == 0 {
		return "(no accounts on file — use an empty suggested_gl_account)"
	}
	var sb strings.Builder
	for _, a := range accounts {
		fmt.Fprintf(&sb, "%s: %s (%s)\n", a.Code, a.Name, a.Category)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// vendorHints renders historical vendor patterns, or empty when none exist.
func vendorHints(patterns []model.VendorPattern) string {
	if len(patterns) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nHistorical vendor patterns for this association:\n")
	for _, p := range patterns {
		fmt.Fprintf(&sb, "%s → %s (%d prior invoices)\n", p.VendorName, p.GLAccount, p.Occurrences)
	}
	return sb.String()
}
