package cache

import (
	"context"
	"time"

	"retail-backoffice/internal/core"
)

// SummaryCache shields the profit aggregator's full replay from repeated
// dashboard polls. Invalidate drops everything under the summary namespace;
// callers invoke it after any purchase or sale mutation.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*core.ProfitSummary, bool, error)
	Set(ctx context.Context, key string, value *core.ProfitSummary, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*core.ProfitSummary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *core.ProfitSummary, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) Invalidate(_ context.Context) error {
	return nil
}
