package atlas

import (
	"context"
	"fmt"
	"time"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/envelope"
	"atlas-advisor-backend/internal/pipeline"
	"atlas-advisor-backend/internal/store"
	"atlas-advisor-backend/internal/telemetry"
	"atlas-advisor-backend/internal/types"
)

// SearchHandler runs a validated search against a Searcher.
type SearchHandler struct {
	searcher Searcher
	timeout  time.Duration
	fallback *store.FallbackStore[types.SearchResponse]
	sink     telemetry.Sink
}

type Option func(*SearchHandler)

// WithFallback serves the last good page for the same search when the
// provider fails with a retryable error.
func WithFallback(fs *store.FallbackStore[types.SearchResponse]) Option {
	return func(h *SearchHandler) { h.fallback = fs }
}

func WithSink(s telemetry.Sink) Option {
	return func(h *SearchHandler) { h.sink = s }
}

// NewSearchHandler wires a handler. A zero timeout means the default 10s.
func NewSearchHandler(s Searcher, timeout time.Duration, opts ...Option) *SearchHandler {
	if timeout <= 0 {
		timeout = pipeline.DefaultTimeout
	}
	h := &SearchHandler{searcher: s, timeout: timeout, sink: telemetry.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SearchHandler) Handle(ctx context.Context, in types.SearchInput) pipeline.Result[types.SearchResponse] {
	page, err := pipeline.Bounded(ctx, h.timeout, func(ctx context.Context) (Page, error) {
		return h.searcher.Search(ctx, in)
	})
	if err != nil {
		aerr := apperr.ToAppError(err)
		if resp, ok := h.stale(in, aerr); ok {
			return pipeline.Ok(resp)
		}
		return pipeline.Fail[types.SearchResponse](aerr)
	}

	resp := types.SearchResponse{
		Query:      in.Query,
		Total:      page.Total,
		Count:      len(page.Results),
		Offset:     in.Offset,
		Limit:      in.Limit,
		Results:    page.Results,
		Categories: page.Categories,
	}
	if resp.Results == nil {
		resp.Results = []types.Dataset{}
	}
	if resp.Categories == nil {
		resp.Categories = []types.CategoryCount{}
	}
	if h.fallback != nil {
		h.fallback.Put(cacheKey(in), resp)
	}
	return pipeline.Ok(resp)
}

// stale returns the remembered page for in, marked stale and carrying the
// masked failure at INFO severity.
func (h *SearchHandler) stale(in types.SearchInput, aerr *apperr.AppError) (types.SearchResponse, bool) {
	if h.fallback == nil || !aerr.Retryable {
		return types.SearchResponse{}, false
	}
	cached, at, ok := h.fallback.Get(cacheKey(in))
	if !ok {
		return types.SearchResponse{}, false
	}
	cached.Metadata = &types.SearchMetadata{
		Stale:    true,
		CachedAt: envelope.Timestamp(at),
		Warning:  apperr.Degrade(aerr),
	}
	telemetry.Safe(h.sink, telemetry.EventFallbackServed, map[string]any{
		"endpoint": "search",
		"category": string(aerr.Category),
	})
	return cached, true
}

func cacheKey(in types.SearchInput) string {
	return fmt.Sprintf("%q|%q|%d|%d|%s", in.Query, in.Category, in.Limit, in.Offset, in.SortBy)
}
