// Package atlas searches the Living Atlas dataset catalog.
package atlas

import (
	"context"
	"sort"
	"strings"

	"atlas-advisor-backend/internal/catalog"
	"atlas-advisor-backend/internal/types"
	"atlas-advisor-backend/internal/validation"
)

// Page is one page of search results from a provider.
type Page struct {
	Total      int
	Results    []types.Dataset
	Categories []types.CategoryCount
}

// Searcher is a dataset catalog provider.
type Searcher interface {
	Search(ctx context.Context, in types.SearchInput) (Page, error)
}

// StaticSearcher searches the embedded dataset fixtures.
type StaticSearcher struct {
	datasets []types.Dataset
}

func NewStaticSearcher(c *catalog.Catalog) *StaticSearcher {
	return &StaticSearcher{datasets: c.Datasets()}
}

// Relevance weights for where the query matched.
const (
	titleWeight       = 3
	tagWeight         = 2
	descriptionWeight = 1
)

type hit struct {
	d     types.Dataset
	score int
}

func (s *StaticSearcher) Search(ctx context.Context, in types.SearchInput) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	q := strings.ToLower(in.Query)

	var matched []hit
	for _, d := range s.datasets {
		if score := relevance(d, q); score > 0 {
			matched = append(matched, hit{d: d, score: score})
		}
	}
	facets := categoryCounts(matched)

	filtered := matched[:0:0]
	for _, h := range matched {
		if in.Category == "" || strings.EqualFold(h.d.Category, in.Category) {
			filtered = append(filtered, h)
		}
	}
	sortHits(filtered, in.SortBy)

	page := Page{Total: len(filtered), Categories: facets, Results: []types.Dataset{}}
	if in.Offset < len(filtered) {
		end := in.Offset + in.Limit
		if end > len(filtered) {
			end = len(filtered)
		}
		for _, h := range filtered[in.Offset:end] {
			d := h.d
			d.Tags = append([]string(nil), h.d.Tags...)
			page.Results = append(page.Results, d)
		}
	}
	return page, nil
}

// relevance scores a case-insensitive substring match of q against the
// title, tags and description. Zero means no match.
func relevance(d types.Dataset, q string) int {
	score := 0
	if strings.Contains(strings.ToLower(d.Title), q) {
		score += titleWeight
	}
	for _, t := range d.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			score += tagWeight
			break
		}
	}
	if strings.Contains(strings.ToLower(d.Description), q) {
		score += descriptionWeight
	}
	return score
}

// sortHits orders hits in place. The sort is stable, so equal keys keep
// catalog order and repeated searches return identical pages.
func sortHits(hits []hit, sortBy string) {
	var less func(a, b hit) bool
	switch sortBy {
	case validation.SortTitle:
		less = func(a, b hit) bool { return strings.ToLower(a.d.Title) < strings.ToLower(b.d.Title) }
	case validation.SortModified:
		less = func(a, b hit) bool { return a.d.Modified > b.d.Modified }
	case validation.SortPopularity:
		less = func(a, b hit) bool { return a.d.Views > b.d.Views }
	default:
		less = func(a, b hit) bool { return a.score > b.score }
	}
	sort.SliceStable(hits, func(i, j int) bool { return less(hits[i], hits[j]) })
}

// categoryCounts tallies categories over all query matches, ignoring the
// category filter, most common first.
func categoryCounts(hits []hit) []types.CategoryCount {
	counts := map[string]int{}
	for _, h := range hits {
		counts[h.d.Category]++
	}
	out := make([]types.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, types.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
