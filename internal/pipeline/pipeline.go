package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestline-hoa/invoice-cli/internal/config"
	"github.com/crestline-hoa/invoice-cli/internal/model"
	"github.com/crestline-hoa/invoice-cli/internal/prompt"
	"github.com/crestline-hoa/invoice-cli/internal/store"
	"github.com/crestline-hoa/invoice-cli/pkg/anthropic"
)

// Pipeline orchestrates the invoice processing stages: OCR, structure
// parsing, context loading, classification, and scoring.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	ai      anthropic.Client
	prompts *prompt.Templates
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, aiClient anthropic.Client, prompts *prompt.Templates) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		ai:      aiClient,
		prompts: prompts,
	}
}

// Request is one invoice submission. Submissions use camelCase field
// names; response payloads use snake_case.
type Request struct {
	ImageURL      string `json:"imageUrl"`
	AssociationID string `json:"associationId"`
	InvoiceID     string `json:"invoiceId,omitempty"`
}

// Validate rejects malformed submissions before any side effects occur.
func (r Request) Validate() error {
	if strings.TrimSpace(r.ImageURL) == "" {
		return model.ValidationFailure("imageUrl is required")
	}
	if strings.TrimSpace(r.AssociationID) == "" {
		return model.ValidationFailure("associationId is required")
	}
	return nil
}

// queueHandle guards the monotonic queue transitions for one run. Once an
// entry is marked completed or failed it must never transition again.
type queueHandle struct {
	store    store.Store
	entry    *model.QueueEntry
	terminal bool
}

func (h *queueHandle) complete(ctx context.Context) {
	if h.terminal {
		return
	}
	h.terminal = true
	if err := h.store.CompleteQueueEntry(ctx, h.entry.ID); err != nil {
		zap.L().Warn("pipeline: failed to mark queue entry completed",
			zap.String("queue_id", h.entry.ID),
			zap.Error(err),
		)
	}
}

func (h *queueHandle) fail(ctx context.Context, cause error) {
	if h.terminal {
		return
	}
	h.terminal = true
	if err := h.store.FailQueueEntry(ctx, h.entry.ID, cause.Error()); err != nil {
		zap.L().Warn("pipeline: failed to mark queue entry failed",
			zap.String("queue_id", h.entry.ID),
			zap.Error(err),
		)
	}
}

// Run processes one invoice end to end. On success the queue entry is
// completed and an audit record saved; a fatal stage failure marks the
// entry failed and returns a typed error. Context load and classification
// failures degrade the result but never fail the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.ProcessedInvoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("association_id", req.AssociationID),
		zap.String("image_url", req.ImageURL),
	)
	log.Info("pipeline: starting invoice processing")

	start := time.Now()

	entry, err := p.store.CreateQueueEntry(ctx, req.InvoiceID, req.AssociationID, req.ImageURL)
	if err != nil {
		return nil, model.FatalFailure(eris.Wrap(err, "pipeline: create queue entry"))
	}
	queue := &queueHandle{store: p.store, entry: entry}
	log = log.With(zap.String("queue_id", entry.ID))

	// Stage timing helper.
	var stages []model.StageTiming
	trackStage := func(name string, fn func() error) error {
		stageStart := time.Now()
		stageErr := fn()
		duration := time.Since(stageStart).Milliseconds()
		stages = append(stages, model.StageTiming{Stage: name, DurationMS: duration})

		if stageErr != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(stageErr),
			)
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		}
		return stageErr
	}

	// ===== Stage 1: OCR =====
	var rawText string
	if err := trackStage("extract", func() error {
		text, exErr := p.extractText(ctx, req.ImageURL)
		rawText = text
		return exErr
	}); err != nil {
		queue.fail(ctx, err)
		return nil, err
	}

	// ===== Stage 2: Structure parsing =====
	var parsed *model.ParsedInvoice
	if err := trackStage("parse", func() error {
		inv, parseErr := p.parseStructure(ctx, rawText)
		parsed = inv
		return parseErr
	}); err != nil {
		queue.fail(ctx, err)
		return nil, err
	}

	// ===== Stage 3: Association context (absorbed failures) =====
	var actx model.AssociationContext
	_ = trackStage("context", func() error {
		actx = p.loadContext(ctx, req.AssociationID)
		return nil
	})

	// ===== Stage 4: Classification (fail-open) =====
	var classified []model.ClassifiedLineItem
	_ = trackStage("classify", func() error {
		classified = p.classifyLineItems(ctx, parsed.LineItems, actx)
		return nil
	})

	// ===== Stage 5: Scoring =====
	var overall float64
	_ = trackStage("score", func() error {
		overall = Score(*parsed, classified)
		return nil
	})

	invoice := &model.ProcessedInvoice{
		VendorName:      parsed.VendorName,
		VendorAddress:   parsed.VendorAddress,
		InvoiceNumber:   parsed.InvoiceNumber,
		InvoiceDate:     parsed.InvoiceDate,
		DueDate:         parsed.DueDate,
		TotalAmount:     parsed.TotalAmount,
		LineItems:       classified,
		ConfidenceScore: overall,
		RawText:         rawText,
	}

	queue.complete(ctx)

	// Persist the audit record. Failures are absorbed: the caller already
	// has the result, and the queue entry reflects completion.
	result := &model.ProcessingResult{
		ID:                 uuid.NewString(),
		QueueID:            entry.ID,
		AssociationID:      req.AssociationID,
		RawText:            rawText,
		Invoice:            *invoice,
		Confidence:         BuildConfidenceBreakdown(overall, classified),
		Stages:             stages,
		ProcessingTimeMS:   time.Since(start).Milliseconds(),
		ModelVersion:       p.cfg.Anthropic.Model,
		VisionModelVersion: p.cfg.Anthropic.VisionModel,
		PromptVersion:      p.prompts.Version,
		CreatedAt:          time.Now().UTC(),
	}
	if saveErr := p.store.SaveResult(ctx, result); saveErr != nil {
		log.Warn("pipeline: failed to save processing result", zap.Error(saveErr))
	}

	p.learnVendorPattern(ctx, req.AssociationID, parsed.VendorName, classified, log)

	log.Info("pipeline: invoice processing complete",
		zap.String("vendor", invoice.VendorName),
		zap.Float64("confidence", overall),
		zap.Int("line_items", len(classified)),
		zap.Int64("total_ms", result.ProcessingTimeMS),
	)

	return invoice, nil
}

// learnVendorPattern records the dominant GL account among classified items
// so future invoices from the same vendor get a historical hint. Best
// effort: failures are logged and absorbed.
func (p *Pipeline) learnVendorPattern(ctx context.Context, associationID, vendorName string, items []model.ClassifiedLineItem, log *zap.Logger) {
	if vendorName == "" {
		return
	}

	counts := make(map[string]int)
	for _, it := range items {
		if it.SuggestedGLAccount != "" && it.Confidence >= 0.7 {
			counts[it.SuggestedGLAccount]++
		}
	}

	var best string
	var bestCount int
	for gl, n := range counts {
		if n > bestCount || (n == bestCount && gl < best) {
			best = gl
			bestCount = n
		}
	}
	if best == "" {
		return
	}

	if err := p.store.UpsertVendorPattern(ctx, associationID, vendorName, best); err != nil {
		log.Warn("pipeline: failed to record vendor pattern",
			zap.String("vendor", vendorName),
			zap.String("gl_account", best),
			zap.Error(err),
		)
	}
}

// callCtx derives a per-call timeout context for LLM requests.
func (p *Pipeline) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(p.cfg.Pipeline.CallTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
