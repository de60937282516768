package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/crestline-hoa/invoice-cli/internal/config"
	"github.com/crestline-hoa/invoice-cli/internal/model"
	"github.com/crestline-hoa/invoice-cli/internal/prompt"
	"github.com/crestline-hoa/invoice-cli/internal/store"
	"github.com/crestline-hoa/invoice-cli/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateQueueEntry(ctx context.Context, invoiceID, associationID, imageURL string) (*model.QueueEntry, error) {
	args := m.Called(ctx, invoiceID, associationID, imageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *mockStore) CompleteQueueEntry(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

func (m *mockStore) FailQueueEntry(ctx context.Context, entryID string, errMsg string) error {
	args := m.Called(ctx, entryID, errMsg)
	return args.Error(0)
}

func (m *mockStore) GetQueueEntry(ctx context.Context, entryID string) (*model.QueueEntry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *mockStore) ListQueueEntries(ctx context.Context, filter store.QueueFilter) ([]model.QueueEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueueEntry), args.Error(1)
}

func (m *mockStore) SaveResult(ctx context.Context, result *model.ProcessingResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *mockStore) GetResult(ctx context.Context, resultID string) (*model.ProcessingResult, error) {
	args := m.Called(ctx, resultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcessingResult), args.Error(1)
}

func (m *mockStore) ListResults(ctx context.Context, associationID string, limit int) ([]model.ProcessingResult, error) {
	args := m.Called(ctx, associationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProcessingResult), args.Error(1)
}

func (m *mockStore) ListGLAccounts(ctx context.Context, associationID string) ([]model.GLAccount, error) {
	args := m.Called(ctx, associationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.GLAccount), args.Error(1)
}

func (m *mockStore) ListVendorPatterns(ctx context.Context, associationID string) ([]model.VendorPattern, error) {
	args := m.Called(ctx, associationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.VendorPattern), args.Error(1)
}

func (m *mockStore) UpsertVendorPattern(ctx context.Context, associationID, vendorName, glAccount string) error {
	args := m.Called(ctx, associationID, vendorName, glAccount)
	return args.Error(0)
}

func (m *mockStore) BulkInsertGLAccounts(ctx context.Context, accounts []model.GLAccount) (int64, error) {
	args := m.Called(ctx, accounts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var (
	_ anthropic.Client = (*mockAnthropicClient)(nil)
	_ store.Store      = (*mockStore)(nil)
)

// --- Shared helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			Model:        "claude-haiku-4-5-20251001",
			VisionModel:  "claude-sonnet-4-5-20250929",
			OCRMaxTokens: 4096,
		},
		Pipeline: config.PipelineConfig{CallTimeoutSecs: 5},
	}
}

func newTestPipeline(st store.Store, ai anthropic.Client) *Pipeline {
	return New(testConfig(), st, ai, prompt.Defaults())
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}
