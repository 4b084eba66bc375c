package atlas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/types"
	"atlas-advisor-backend/internal/validation"
)

// Queryer is the subset of *sql.DB the SQL searcher needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLSearcher searches a Postgres mirror of the catalog (see
// db/migrations). Matching follows the same rules as StaticSearcher.
type SQLSearcher struct {
	db Queryer
}

func NewSQLSearcher(db Queryer) *SQLSearcher { return &SQLSearcher{db: db} }

const matchClause = `(title ILIKE $1 OR description ILIKE $1 OR array_to_string(tags, ' ') ILIKE $1)`

var sqlOrderBy = map[string]string{
	validation.SortTitle:      "lower(title) ASC, position ASC",
	validation.SortModified:   "modified DESC NULLS LAST, position ASC",
	validation.SortPopularity: "views DESC, position ASC",
	validation.SortRelevance: `(CASE WHEN title ILIKE $1 THEN 3 ELSE 0 END
		+ CASE WHEN array_to_string(tags, ' ') ILIKE $1 THEN 2 ELSE 0 END
		+ CASE WHEN description ILIKE $1 THEN 1 ELSE 0 END) DESC, position ASC`,
}

// likePattern escapes LIKE metacharacters and wraps q for substring search.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// buildSearchSQL returns the page query and its arguments.
func buildSearchSQL(in types.SearchInput) (string, []any) {
	args := []any{likePattern(in.Query)}
	where := matchClause
	if in.Category != "" {
		args = append(args, in.Category)
		where += fmt.Sprintf(" AND lower(category) = lower($%d)", len(args))
	}
	order, ok := sqlOrderBy[in.SortBy]
	if !ok {
		order = sqlOrderBy[validation.SortRelevance]
	}
	args = append(args, in.Limit, in.Offset)
	q := fmt.Sprintf(`SELECT id, title, description, category, tags, owner, item_type, url, modified, views
		FROM datasets WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`, where, order, len(args)-1, len(args))
	return q, args
}

const facetSQL = `SELECT category, count(*) FROM datasets WHERE ` + matchClause +
	` GROUP BY category ORDER BY count(*) DESC, category ASC`

func (s *SQLSearcher) Search(ctx context.Context, in types.SearchInput) (Page, error) {
	facets, err := s.facets(ctx, in.Query)
	if err != nil {
		return Page{}, err
	}
	page := Page{Categories: facets, Results: []types.Dataset{}}
	for _, f := range facets {
		if in.Category == "" || strings.EqualFold(f.Category, in.Category) {
			page.Total += f.Count
		}
	}

	q, args := buildSearchSQL(in)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Page{}, sqlErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var d types.Dataset
		var modified sql.NullTime
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.Category, pq.Array(&d.Tags),
			&d.Owner, &d.ItemType, &d.URL, &modified, &d.Views); err != nil {
			return Page{}, sqlErr(err)
		}
		if modified.Valid {
			d.Modified = modified.Time.Format("2006-01-02")
		}
		page.Results = append(page.Results, d)
	}
	if err := rows.Err(); err != nil {
		return Page{}, sqlErr(err)
	}
	return page, nil
}

func (s *SQLSearcher) facets(ctx context.Context, query string) ([]types.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, facetSQL, likePattern(query))
	if err != nil {
		return nil, sqlErr(err)
	}
	defer rows.Close()
	out := []types.CategoryCount{}
	for rows.Next() {
		var c types.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, sqlErr(err)
		}
		out = append(out, c)
	}
	return out, sqlErr(rows.Err())
}

// sqlErr tags database-reported failures as upstream data errors. Network
// and context errors pass through unchanged.
func sqlErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &apperr.UpstreamError{Origin: apperr.OriginData, Err: err}
	}
	return err
}

// Execer is the subset of *sql.DB used by ImportDatasets.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ImportDatasets upserts datasets into the mirror table, keeping their
// slice order as catalog order.
func ImportDatasets(ctx context.Context, db Execer, datasets []types.Dataset) error {
	const upsert = `INSERT INTO datasets
		(id, position, title, description, category, tags, owner, item_type, url, modified, views)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::date, $11)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position, title = EXCLUDED.title,
			description = EXCLUDED.description, category = EXCLUDED.category,
			tags = EXCLUDED.tags, owner = EXCLUDED.owner, item_type = EXCLUDED.item_type,
			url = EXCLUDED.url, modified = EXCLUDED.modified, views = EXCLUDED.views`
	for i, d := range datasets {
		if _, err := db.ExecContext(ctx, upsert, d.ID, i, d.Title, d.Description, d.Category,
			pq.Array(d.Tags), d.Owner, d.ItemType, d.URL, d.Modified, d.Views); err != nil {
			return fmt.Errorf("import dataset %s: %w", d.ID, err)
		}
	}
	return nil
}
