package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dshills/eventsage/internal/vector"
	"github.com/dshills/eventsage/pkg/types"
)

// buildEventFilter renders filter as a parameterized WHERE body without the
// WHERE keyword. An empty filter yields "" and no args.
func buildEventFilter(filter *EventFilter) (string, []interface{}) {
	if filter.IsEmpty() {
		return "", nil
	}

	var (
		conds []string
		args  []interface{}
	)
	if filter.Date != nil {
		conds = append(conds, "event_date >= ?")
		args = append(args, filter.Date.From.Format(types.DateLayout))
		if filter.Date.To != nil {
			conds = append(conds, "event_date <= ?")
			args = append(args, filter.Date.To.Format(types.DateLayout))
		}
	}
	if filter.FeeCeiling != nil {
		if *filter.FeeCeiling == 0 {
			conds = append(conds, "registration_fee = 0")
		} else {
			conds = append(conds, "registration_fee <= ?")
			args = append(args, *filter.FeeCeiling)
		}
	}
	return strings.Join(conds, " AND "), args
}

func whereClause(where string) string {
	if where == "" {
		return ""
	}
	return " WHERE " + where
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards; patterns use ESCAPE '\'
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// sqlLimit maps a non-positive limit to SQLite's "no limit"
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// searchHybrid returns the union of lexical, substring and vector
// candidates that pass the filter. Scoring and ordering are left to the
// caller.
func searchHybrid(ctx context.Context, q querier, req HybridQuery) ([]Candidate, error) {
	var (
		cols = []string{eventColumns, funcTrigramSimilarity + "(?, search_text) AS lex"}
		args = []interface{}{req.Query}
	)

	// instr() finds the empty string everywhere
	if req.Query != "" {
		cols = append(cols, "instr(search_text, ?) > 0 AS contained")
		args = append(args, req.Query)
	} else {
		cols = append(cols, "0 AS contained")
	}

	hasVector := len(req.Vector) > 0
	if hasVector {
		cols = append(cols, funcVecDistanceCosine+"(embedding, ?) AS dist")
		args = append(args, vector.Encode(req.Vector))
	} else {
		cols = append(cols, "NULL AS dist")
	}

	where, filterArgs := buildEventFilter(req.Filter)
	args = append(args, filterArgs...)

	query := "SELECT * FROM (SELECT " + strings.Join(cols, ", ") + " FROM events" + whereClause(where) + ")" +
		" WHERE lex > ? OR contained = 1"
	args = append(args, req.LexicalThreshold)
	if hasVector {
		query += " OR dist < ?"
		args = append(args, req.VectorThreshold)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute hybrid search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Candidate
	for rows.Next() {
		var (
			c         Candidate
			contained int
			dist      sql.NullFloat64
		)
		ev, err := scanEvent(rows, &c.Lexical, &contained, &dist)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		c.Event = ev
		c.Contained = contained != 0
		if dist.Valid {
			d := dist.Float64
			c.Distance = &d
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// searchVector returns the nearest events to vec by cosine distance with no
// filter applied
func searchVector(ctx context.Context, q querier, vec []float32, limit int) ([]Candidate, error) {
	if len(vec) == 0 {
		return nil, nil
	}

	query := "SELECT " + eventColumns + ", " + funcVecDistanceCosine + "(embedding, ?) AS dist" +
		" FROM events ORDER BY dist ASC, id ASC LIMIT ?"
	rows, err := q.QueryContext(ctx, query, vector.Encode(vec), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Candidate
	for rows.Next() {
		var dist float64
		ev, err := scanEvent(rows, &dist)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		d := dist
		results = append(results, Candidate{Event: ev, Distance: &d})
	}
	return results, rows.Err()
}
