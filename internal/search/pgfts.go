package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the stored working set.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery against the generated fts columns of
// processos and testemunhas, ranked by ts_rank.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('simple', $2)"
	var subQueries []string
	if q.FilterType == "" || q.FilterType == ResultProcesso {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'processo'::text AS type, pr.cnj_digits AS id, pr.cnj AS title,
				concat_ws(' · ', nullif(pr.reclamante, ''), nullif(pr.reclamada, ''), nullif(pr.comarca, '')) AS snippet,
				jsonb_build_array(pr.cnj)::text AS cnjs,
				ts_rank(pr.fts, %s) AS rank
			FROM processos pr
			WHERE pr.org_id = $1 AND pr.fts @@ %s`, tsQuery, tsQuery))
	}
	if q.FilterType == "" || q.FilterType == ResultPessoa {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'pessoa'::text AS type, t.nome AS id, t.nome AS title,
				'testemunha'::text AS snippet,
				coalesce(t.data->'cnjs_como_testemunha', '[]'::jsonb)::text AS cnjs,
				ts_rank(t.fts, %s) AS rank
			FROM testemunhas t
			WHERE t.org_id = $1 AND t.fts @@ %s`, tsQuery, tsQuery))
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, cnjs
		FROM (%s) sub
		ORDER BY rank DESC, title
		LIMIT %d OFFSET %d`, union, limit, offset)
	args := []any{q.OrgID, q.Text}

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r    Result
			typ  string
			cnjs string
		)
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &cnjs); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		r.CNJs = []string{}
		_ = json.Unmarshal([]byte(cnjs), &r.CNJs)
		results = append(results, r)
	}
	return results, total, rows.Err()
}
