package store

import (
	"context"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

// QueueFilter specifies criteria for listing queue entries.
type QueueFilter struct {
	Status        model.QueueStatus `json:"status,omitempty"`
	AssociationID string            `json:"association_id,omitempty"`
	Limit         int               `json:"limit,omitempty"`
	Offset        int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the invoice pipeline.
type Store interface {
	// Processing queue
	CreateQueueEntry(ctx context.Context, invoiceID, associationID, imageURL string) (*model.QueueEntry, error)
	CompleteQueueEntry(ctx context.Context, entryID string) error
	FailQueueEntry(ctx context.Context, entryID string, errMsg string) error
	GetQueueEntry(ctx context.Context, entryID string) (*model.QueueEntry, error)
	ListQueueEntries(ctx context.Context, filter QueueFilter) ([]model.QueueEntry, error)

	// Audit results
	SaveResult(ctx context.Context, result *model.ProcessingResult) error
	GetResult(ctx context.Context, resultID string) (*model.ProcessingResult, error)
	ListResults(ctx context.Context, associationID string, limit int) ([]model.ProcessingResult, error)

	// Association context
	ListGLAccounts(ctx context.Context, associationID string) ([]model.GLAccount, error)
	ListVendorPatterns(ctx context.Context, associationID string) ([]model.VendorPattern, error)
	UpsertVendorPattern(ctx context.Context, associationID, vendorName, glAccount string) error
	BulkInsertGLAccounts(ctx context.Context, accounts []model.GLAccount) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
