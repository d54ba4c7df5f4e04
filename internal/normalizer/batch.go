package normalizer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bean-lens/beanlens/internal/models"
)

// DefaultConcurrency bounds batch normalization when no limit is given
const DefaultConcurrency = 4

// NormalizeBeans normalizes beans with at most concurrency calls in flight.
// Results keep the input order. Only cancellation of ctx stops the batch early.
func (n *Normalizer) NormalizeBeans(ctx context.Context, beans []models.BeanInfo, concurrency int) ([]NormalizedBeanInfo, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]NormalizedBeanInfo, len(beans))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, bean := range beans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = n.NormalizeBean(ctx, bean)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// NormalizeRecords is NormalizeBeans for generic records
func (n *Normalizer) NormalizeRecords(ctx context.Context, records []Record, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]Result, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rec := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = n.Normalize(ctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
