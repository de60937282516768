package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls int
	resp  *MessageResponse
	err   error
}

func (c *countingClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	c.calls++
	return c.resp, c.err
}

func TestNewRateLimited_ZeroRateReturnsInner(t *testing.T) {
	inner := &countingClient{}
	assert.Same(t, Client(inner), NewRateLimited(inner, 0, 1))
}

func TestNewRateLimited_Delegates(t *testing.T) {
	inner := &countingClient{resp: &MessageResponse{ID: "msg_1"}}
	limited := NewRateLimited(inner, 100, 10)

	resp, err := limited.CreateMessage(context.Background(), MessageRequest{Model: "claude-haiku-4-5-20251001"})
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, 1, inner.calls)
}

func TestNewRateLimited_CanceledContext(t *testing.T) {
	inner := &countingClient{resp: &MessageResponse{}}
	// Rate of 0.001/s with burst 1: the second call would block, so a
	// canceled context must surface an error instead of hanging.
	limited := NewRateLimited(inner, 0.001, 1)

	_, err := limited.CreateMessage(context.Background(), MessageRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.CreateMessage(ctx, MessageRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
