package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a referenced node does not exist.
var ErrNotFound = errors.New("not found")

// Edge is a weighted, directed relationship between two nodes.
type Edge struct {
	ID           int64   `json:"id"`
	From         string  `json:"from_id"`
	To           string  `json:"to_id"`
	Type         string  `json:"type"`
	Weight       float64 `json:"weight"`
	Provenance   string  `json:"provenance,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	LastAccessed int64   `json:"last_accessed"`

	// ToTitle is populated by EdgesFrom for rendering; not a column.
	ToTitle string `json:"to_title,omitempty"`
}

// Neighbor pairs a node with the edge that reaches it, regardless of the
// edge's stored direction.
type Neighbor struct {
	Node Node
	Edge Edge
}

// AddEdge inserts an edge between two existing nodes. When bidirectional,
// the reverse edge is created at 0.8x weight, mirroring how a
// back-reference is usually weaker than the original assertion.
func (db *DB) AddEdge(from, to, edgeType string, weight float64, provenance string, bidirectional bool) error {
	for _, id := range []string{from, to} {
		n, err := db.GetNode(id)
		if err != nil {
			return err
		}
		if n == nil {
			return fmt.Errorf("add edge %s->%s: node %s: %w", from, to, id, ErrNotFound)
		}
	}

	if edgeType == "" {
		edgeType = "relates_to"
	}
	weight = ClampWeight(weight)
	now := time.Now().UnixMilli()

	_, err := db.Exec(`
		INSERT OR REPLACE INTO edges (from_id, to_id, type, weight, provenance, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, from, to, edgeType, weight, provenance, now, now)
	if err != nil {
		return fmt.Errorf("add edge: %w", err)
	}

	if bidirectional {
		_, err = db.Exec(`
			INSERT OR IGNORE INTO edges (from_id, to_id, type, weight, provenance, created_at, last_accessed)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, to, from, edgeType, ClampWeight(weight*0.8), provenance, now, now)
		if err != nil {
			return fmt.Errorf("add reverse edge: %w", err)
		}
	}
	return nil
}

// EdgesFrom returns outgoing edges ordered by weight, with target titles
// joined in for rendering. limit <= 0 returns all.
func (db *DB) EdgesFrom(nodeID string, limit int) ([]Edge, error) {
	q := `
		SELECT e.id, e.from_id, e.to_id, e.type, e.weight, e.provenance, e.created_at, e.last_accessed,
			n.title
		FROM edges e JOIN nodes n ON n.id = e.to_id
		WHERE e.from_id = ? ORDER BY e.weight DESC`
	args := []any{nodeID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("edges from: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.Type, &e.Weight, &e.Provenance,
			&e.CreatedAt, &e.LastAccessed, &e.ToTitle); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// EdgesTo returns incoming edges ordered by weight.
func (db *DB) EdgesTo(nodeID string) ([]Edge, error) {
	rows, err := db.Query(`
		SELECT id, from_id, to_id, type, weight, provenance, created_at, last_accessed
		FROM edges WHERE to_id = ? ORDER BY weight DESC
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("edges to: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// Neighbors returns every node adjacent to nodeID, expanding edges in both
// directions. The traversal layer treats the graph as undirected.
func (db *DB) Neighbors(nodeID string) ([]Neighbor, error) {
	rows, err := db.Query(`
		SELECT e.id, e.from_id, e.to_id, e.type, e.weight, e.provenance, e.created_at, e.last_accessed,
			n.id, n.type, n.title, n.content, n.aka, n.weight, n.domains, n.status, n.audience, n.extra,
			n.created_at, n.updated_at, n.last_accessed
		FROM edges e
		JOIN nodes n ON n.id = CASE WHEN e.from_id = ? THEN e.to_id ELSE e.from_id END
		WHERE e.from_id = ? OR e.to_id = ?
		ORDER BY e.weight DESC
	`, nodeID, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var nb Neighbor
		var aka, domains, extra string
		err := rows.Scan(&nb.Edge.ID, &nb.Edge.From, &nb.Edge.To, &nb.Edge.Type, &nb.Edge.Weight,
			&nb.Edge.Provenance, &nb.Edge.CreatedAt, &nb.Edge.LastAccessed,
			&nb.Node.ID, &nb.Node.Type, &nb.Node.Title, &nb.Node.Content, &aka, &nb.Node.Weight,
			&domains, &nb.Node.Status, &nb.Node.Audience, &extra,
			&nb.Node.CreatedAt, &nb.Node.UpdatedAt, &nb.Node.LastAccessed)
		if err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		decodeJSONFields(&nb.Node, aka, domains, extra)
		out = append(out, nb)
	}
	return out, rows.Err()
}

// SetEdgeWeight writes a new weight for an edge as a single atomic update.
func (db *DB) SetEdgeWeight(id int64, weight float64) error {
	_, err := db.Exec("UPDATE edges SET weight = ? WHERE id = ?", ClampWeight(weight), id)
	if err != nil {
		return fmt.Errorf("set edge weight: %w", err)
	}
	return nil
}

// TouchEdgesFrom resets the access clock on the outgoing edges of the
// given surfaced nodes.
func (db *DB) TouchEdgesFrom(nodeIDs []string, now int64) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	ph := placeholders(len(nodeIDs))
	args := make([]any, 0, len(nodeIDs)+1)
	args = append(args, now)
	for _, id := range nodeIDs {
		args = append(args, id)
	}
	_, err := db.Exec(fmt.Sprintf(
		"UPDATE edges SET last_accessed = MAX(last_accessed, ?) WHERE from_id IN (%s)", ph), args...)
	if err != nil {
		return fmt.Errorf("touch edges: %w", err)
	}
	return nil
}

// EdgeWeightRow is a lightweight projection for decay batching.
type EdgeWeightRow struct {
	ID           int64
	Weight       float64
	LastAccessed int64
}

// EdgesForDecay returns id/weight/last_accessed for every edge.
func (db *DB) EdgesForDecay() ([]EdgeWeightRow, error) {
	rows, err := db.Query("SELECT id, weight, last_accessed FROM edges")
	if err != nil {
		return nil, fmt.Errorf("edges for decay: %w", err)
	}
	defer rows.Close()

	var out []EdgeWeightRow
	for rows.Next() {
		var r EdgeWeightRow
		if err := rows.Scan(&r.ID, &r.Weight, &r.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan edge weight row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeJSONFields(n *Node, aka, domains, extra string) {
	if aka != "" {
		jsonUnmarshal(aka, &n.AKA)
	}
	if domains != "" {
		jsonUnmarshal(domains, &n.Domains)
	}
	if extra != "" {
		jsonUnmarshal(extra, &n.Extra)
	}
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.Type, &e.Weight, &e.Provenance,
			&e.CreatedAt, &e.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
