package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/textutil"
)

// Search finds the latest live records whose value or key contains any query term.
// Similarity is the share of query terms a record matches. With no usable terms the
// search degrades to a category listing with zero similarity.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.RetrievalHit, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	terms := textutil.ContentWords(p.Query, 3)
	if len(terms) == 0 {
		if len(p.Categories) == 0 {
			return nil, nil
		}
		records, err := s.ListByUser(ctx, p.UserID, ListParams{Categories: p.Categories, Limit: limit})
		if err != nil {
			return nil, err
		}
		hits := make([]model.RetrievalHit, 0, len(records))
		for _, r := range records {
			hits = append(hits, model.RetrievalHit{Record: r})
		}
		return hits, nil
	}

	where := []string{"m.deleted_at IS NULL", "m.user_id = ?"}
	args := []interface{}{p.UserID}
	if len(p.Categories) > 0 {
		where = append(where, "m.category IN ("+placeholders(len(p.Categories))+")")
		for _, c := range p.Categories {
			args = append(args, string(c))
		}
	}

	var match []string
	for _, t := range terms {
		match = append(match, "m.value LIKE ?", "m.key LIKE ?")
		like := "%" + t + "%"
		args = append(args, like, like)
	}
	where = append(where, "("+strings.Join(match, " OR ")+")")

	// Over-fetch so ranking by term overlap sees more than the newest rows.
	args = append(args, limit*3)

	query := fmt.Sprintf(`SELECT %s FROM memories m %s
		WHERE %s
		ORDER BY m.created_at DESC
		LIMIT ?`, memoryColumns, latestJoin, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	records, err := scanAll(rows)
	if err != nil {
		return nil, err
	}

	hits := make([]model.RetrievalHit, 0, len(records))
	for _, r := range records {
		hits = append(hits, model.RetrievalHit{
			Record:     r,
			Similarity: textutil.Overlap(terms, r.Key+" "+r.Value),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
