package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

// loadContext fetches the association's chart of accounts and vendor
// patterns. The two reads run concurrently. Failures are absorbed: the
// pipeline degrades to empty context rather than blocking ingestion, so
// this function never returns an error.
func (p *Pipeline) loadContext(ctx context.Context, associationID string) model.AssociationContext {
	var actx model.AssociationContext

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := p.store.ListGLAccounts(gCtx, associationID)
		if err != nil {
			zap.L().Warn("context: gl account load failed, continuing without",
				zap.String("association_id", associationID),
				zap.Error(err),
			)
			return nil
		}
		actx.GLAccounts = accounts
		return nil
	})

	g.Go(func() error {
		patterns, err := p.store.ListVendorPatterns(gCtx, associationID)
		if err != nil {
			zap.L().Warn("context: vendor pattern load failed, continuing without",
				zap.String("association_id", associationID),
				zap.Error(err),
			)
			return nil
		}
		actx.VendorPatterns = patterns
		return nil
	})

	_ = g.Wait()

	return actx
}
