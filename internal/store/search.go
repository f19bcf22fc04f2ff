package store

import (
	"fmt"
	"strings"
)

// SearchResult pairs a node with its FTS5 BM25 rank. Rank is negative,
// with more negative meaning more relevant (raw SQLite convention); the
// results come back already ordered best-first.
type SearchResult struct {
	Node Node    `json:"node"`
	Rank float64 `json:"rank"`
}

// Search performs full-text search over node title/content/aka/domains
// using FTS5 BM25 ranking, restricted to the given audience scopes.
// Empty scopes means no audience restriction.
func (db *DB) Search(query string, scopes []string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, nil
	}

	q := `
		SELECT n.id, n.type, n.title, n.content, n.aka, n.weight, n.domains, n.status, n.audience, n.extra,
			n.created_at, n.updated_at, n.last_accessed, fts.rank
		FROM nodes_fts fts
		JOIN nodes n ON n.id = fts.id
		WHERE nodes_fts MATCH ? AND n.status != 'archived'`
	args := []any{ftsQuery}

	if len(scopes) > 0 {
		q += fmt.Sprintf(" AND n.audience IN (%s)", placeholders(len(scopes)))
		for _, s := range scopes {
			args = append(args, s)
		}
	}
	q += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		// FTS5 syntax errors fall back to a LIKE scan so an odd query
		// string never breaks retrieval.
		return db.likeSearch(query, scopes, limit)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var aka, domains, extra string
		if err := rows.Scan(&r.Node.ID, &r.Node.Type, &r.Node.Title, &r.Node.Content, &aka,
			&r.Node.Weight, &domains, &r.Node.Status, &r.Node.Audience, &extra,
			&r.Node.CreatedAt, &r.Node.UpdatedAt, &r.Node.LastAccessed, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		decodeJSONFields(&r.Node, aka, domains, extra)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (db *DB) likeSearch(query string, scopes []string, limit int) ([]SearchResult, error) {
	q := `
		SELECT id, type, title, content, aka, weight, domains, status, audience, extra,
			created_at, updated_at, last_accessed
		FROM nodes WHERE (title LIKE ? OR content LIKE ?) AND status != 'archived'`
	pattern := "%" + query + "%"
	args := []any{pattern, pattern}

	if len(scopes) > 0 {
		q += fmt.Sprintf(" AND audience IN (%s)", placeholders(len(scopes)))
		for _, s := range scopes {
			args = append(args, s)
		}
	}
	q += " ORDER BY weight DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("like search: %w", err)
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, len(nodes))
	for i, n := range nodes {
		results[i] = SearchResult{Node: n}
	}
	return results, nil
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" -> `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}
