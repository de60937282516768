package model

import "time"

// QueueStatus represents the lifecycle state of an invoice submission.
// Transitions are monotonic: processing → completed or processing → failed.
type QueueStatus string

const (
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueueEntry tracks one invoice submission through the pipeline.
type QueueEntry struct {
	ID            string      `json:"id"`
	InvoiceID     string      `json:"invoice_id,omitempty"`
	AssociationID string      `json:"association_id"`
	ImageURL      string      `json:"image_url"`
	Status        QueueStatus `json:"status"`
	Error         string      `json:"error,omitempty"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// LineItemConfidence is the per-line-item slice of a confidence breakdown.
type LineItemConfidence struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// ConfidenceBreakdown holds the overall score plus one entry per line item.
// The line_items slice always has the same length and order as the parsed
// invoice's line items.
type ConfidenceBreakdown struct {
	Overall   float64              `json:"overall"`
	LineItems []LineItemConfidence `json:"line_items"`
}

// ProcessingResult is the write-once audit record for a successful run.
// ModelVersion is the text model used for parsing and classification;
// VisionModelVersion is the model the OCR stage ran on.
type ProcessingResult struct {
	ID                 string              `json:"id"`
	QueueID            string              `json:"queue_id"`
	AssociationID      string              `json:"association_id"`
	RawText            string              `json:"raw_text"`
	Invoice            ProcessedInvoice    `json:"invoice"`
	Confidence         ConfidenceBreakdown `json:"confidence"`
	Stages             []StageTiming       `json:"stages,omitempty"`
	ProcessingTimeMS   int64               `json:"processing_time_ms"`
	ModelVersion       string              `json:"model_version"`
	VisionModelVersion string              `json:"vision_model_version"`
	PromptVersion      string              `json:"prompt_version"`
	CreatedAt          time.Time           `json:"created_at"`
}
