package atlas

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/catalog"
	"atlas-advisor-backend/internal/types"
	"atlas-advisor-backend/internal/validation"
)

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%census%", likePattern("census"))
	assert.Equal(t, `%50\% off\_sale\\x%`, likePattern(`50% off_sale\x`))
}

func TestBuildSearchSQL(t *testing.T) {
	q, args := buildSearchSQL(types.SearchInput{Query: "census", Limit: 20, Offset: 40, SortBy: validation.SortTitle})
	assert.Equal(t, []any{"%census%", 20, 40}, args)
	assert.Contains(t, q, "ORDER BY lower(title) ASC, position ASC")
	assert.Contains(t, q, "LIMIT $2 OFFSET $3")
	assert.NotContains(t, q, "category) = lower(")

	q, args = buildSearchSQL(types.SearchInput{Query: "census", Category: "Boundaries", Limit: 5, SortBy: validation.SortRelevance})
	assert.Equal(t, []any{"%census%", "Boundaries", 5, 0}, args)
	assert.Contains(t, q, "lower(category) = lower($2)")
	assert.Contains(t, q, "LIMIT $3 OFFSET $4")
	assert.Contains(t, q, "THEN 3 ELSE 0 END")
}

func TestBuildSearchSQL_UnknownSortFallsBackToRelevance(t *testing.T) {
	q, _ := buildSearchSQL(types.SearchInput{Query: "census", Limit: 5, SortBy: "bogus"})
	assert.Contains(t, q, "THEN 3 ELSE 0 END")
}

func TestSQLErr(t *testing.T) {
	assert.NoError(t, sqlErr(nil))

	err := sqlErr(&pq.Error{Code: "42P01", Message: `relation "datasets" does not exist`})
	assert.Equal(t, apperr.CategoryUpstreamDataError, apperr.ToAppError(err).Category)

	assert.Equal(t, apperr.CategoryTimeout, apperr.ToAppError(sqlErr(context.DeadlineExceeded)).Category)
	assert.Equal(t, apperr.CategoryInternal, apperr.ToAppError(sqlErr(sql.ErrConnDone)).Category)
}

type execCall struct {
	query string
	args  []any
}

type fakeExecer struct {
	calls  []execCall
	failOn int
}

func (f *fakeExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return nil, errors.New("insert failed")
	}
	return driverResult{}, nil
}

type driverResult struct{}

func (driverResult) LastInsertId() (int64, error) { return 0, nil }
func (driverResult) RowsAffected() (int64, error) { return 1, nil }

func TestImportDatasets(t *testing.T) {
	datasets := catalog.MustLoad().Datasets()
	f := &fakeExecer{}
	require.NoError(t, ImportDatasets(context.Background(), f, datasets))

	require.Len(t, f.calls, len(datasets))
	first := f.calls[0]
	assert.True(t, strings.HasPrefix(strings.TrimSpace(first.query), "INSERT INTO datasets"))
	assert.Contains(t, first.query, "ON CONFLICT (id) DO UPDATE")
	assert.Equal(t, "usa-census-tracts", first.args[0])
	assert.Equal(t, 0, first.args[1])
	assert.Equal(t, 1, f.calls[1].args[1])
}

func TestImportDatasets_StopsOnError(t *testing.T) {
	f := &fakeExecer{failOn: 2}
	err := ImportDatasets(context.Background(), f, catalog.MustLoad().Datasets())
	assert.ErrorContains(t, err, "import dataset usa-counties")
	assert.Len(t, f.calls, 2)
}
