package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// limitedClient paces CreateMessage calls through a token-bucket limiter so
// the pipeline stays under the account's request-per-minute ceiling even
// when many invoices are submitted at once.
type limitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited wraps client with a rate limiter allowing rps requests per
// second with the given burst. A non-positive rps returns client unchanged.
func NewRateLimited(client Client, rps float64, burst int) Client {
	if rps <= 0 {
		return client
	}
	if burst < 1 {
		burst = 1
	}
	return &limitedClient{
		inner:   client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *limitedClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "anthropic: rate limit wait")
	}
	return c.inner.CreateMessage(ctx, req)
}
