package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Knowledge node types.
var KnowledgeTypes = []string{
	"concept", "document", "session", "person", "project",
	"decision", "question", "artifact", "skill",
}

// Operational node types: what must hold, what to verify, what to watch.
var OperationalTypes = []string{
	"constraint", "directive", "checkpoint", "watch",
}

// Node is a weighted knowledge graph entity.
type Node struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	AKA          []string       `json:"aka,omitempty"`
	Weight       float64        `json:"weight"`
	Domains      []string       `json:"domains,omitempty"`
	Status       string         `json:"status"`
	Audience     string         `json:"audience"`
	Extra        map[string]any `json:"extra,omitempty"`
	CreatedAt    int64          `json:"created_at"`
	UpdatedAt    int64          `json:"updated_at"`
	LastAccessed int64          `json:"last_accessed"`
}

// NodeFilter narrows ListNodes results. Zero values mean "any".
type NodeFilter struct {
	Type     string
	Status   string
	Audience string
	Limit    int
}

// newID generates a short node identifier (12 hex chars).
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ClampWeight bounds a weight to [0, 1].
func ClampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func jdumps(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// CreateNode inserts a node. Assigns an ID when none is given and clamps
// the weight. The ID is immutable once assigned.
func (db *DB) CreateNode(n *Node) error {
	now := time.Now().UnixMilli()
	if n.ID == "" {
		n.ID = newID()
	}
	if n.Type == "" {
		n.Type = "concept"
	}
	if n.Status == "" {
		n.Status = "active"
	}
	if n.Audience == "" {
		n.Audience = "private"
	}
	n.Weight = ClampWeight(n.Weight)

	_, err := db.Exec(`
		INSERT INTO nodes (id, type, title, content, aka, weight, domains, status, audience, extra,
			created_at, updated_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Type, n.Title, n.Content, jdumps(n.AKA), n.Weight, jdumps(n.Domains),
		n.Status, n.Audience, jdumps(n.Extra), now, now, now)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	n.CreatedAt = now
	n.UpdatedAt = now
	n.LastAccessed = now
	return nil
}

// GetNode returns a node by ID, or nil if not found.
func (db *DB) GetNode(id string) (*Node, error) {
	row := db.QueryRow(`
		SELECT id, type, title, content, aka, weight, domains, status, audience, extra,
			created_at, updated_at, last_accessed
		FROM nodes WHERE id = ?
	`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// GetNodeByTitle matches a node by exact title or AKA alias, case-insensitive.
func (db *DB) GetNodeByTitle(title string) (*Node, error) {
	row := db.QueryRow(`
		SELECT id, type, title, content, aka, weight, domains, status, audience, extra,
			created_at, updated_at, last_accessed
		FROM nodes WHERE lower(title) = lower(?)
	`, title)
	n, err := scanNode(row)
	if err == nil {
		return n, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("get node by title: %w", err)
	}

	// Fall back to AKA search
	nodes, err := db.ListNodes(NodeFilter{})
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(title)
	for i := range nodes {
		for _, aka := range nodes[i].AKA {
			if strings.ToLower(aka) == lower {
				return &nodes[i], nil
			}
		}
	}
	return nil, nil
}

// UpdateNode updates mutable fields (title, content, aka, weight, domains,
// status, audience, extra) and bumps updated_at. The ID never changes.
func (db *DB) UpdateNode(n *Node) error {
	now := time.Now().UnixMilli()
	n.Weight = ClampWeight(n.Weight)
	_, err := db.Exec(`
		UPDATE nodes SET type = ?, title = ?, content = ?, aka = ?, weight = ?, domains = ?,
			status = ?, audience = ?, extra = ?, updated_at = ?
		WHERE id = ?
	`, n.Type, n.Title, n.Content, jdumps(n.AKA), n.Weight, jdumps(n.Domains),
		n.Status, n.Audience, jdumps(n.Extra), now, n.ID)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	n.UpdatedAt = now
	return nil
}

// SetNodeWeight writes a new weight for a node as a single atomic update.
// Used by the decay engine; does not touch last_accessed.
func (db *DB) SetNodeWeight(id string, weight float64) error {
	_, err := db.Exec("UPDATE nodes SET weight = ? WHERE id = ?", ClampWeight(weight), id)
	if err != nil {
		return fmt.Errorf("set node weight: %w", err)
	}
	return nil
}

// TouchNodes resets the access clock on the given nodes. Last-write-wins on
// a monotonically increasing timestamp: an older "now" never moves the clock
// backwards under concurrent retrievals.
func (db *DB) TouchNodes(ids []string, now int64) error {
	if len(ids) == 0 {
		return nil
	}
	ph := placeholders(len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, now)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := db.Exec(fmt.Sprintf(
		"UPDATE nodes SET last_accessed = MAX(last_accessed, ?) WHERE id IN (%s)", ph), args...)
	if err != nil {
		return fmt.Errorf("touch nodes: %w", err)
	}
	return nil
}

// BoostNode resets a node's weight to 1.0 and touches it (explicit pin).
func (db *DB) BoostNode(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(
		"UPDATE nodes SET weight = 1.0, last_accessed = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("boost node: %w", err)
	}
	return nil
}

// ListNodes returns nodes matching the filter, ordered by weight descending.
func (db *DB) ListNodes(f NodeFilter) ([]Node, error) {
	q := `SELECT id, type, title, content, aka, weight, domains, status, audience, extra,
		created_at, updated_at, last_accessed FROM nodes WHERE 1=1`
	var args []any
	if f.Type != "" {
		q += " AND type = ?"
		args = append(args, f.Type)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Audience != "" {
		q += " AND audience = ?"
		args = append(args, f.Audience)
	}
	q += " ORDER BY weight DESC, updated_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetNodesByIDs returns the nodes for the given IDs. Missing IDs are
// silently omitted.
func (db *DB) GetNodesByIDs(ids []string) ([]Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph := placeholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.Query(fmt.Sprintf(`
		SELECT id, type, title, content, aka, weight, domains, status, audience, extra,
			created_at, updated_at, last_accessed
		FROM nodes WHERE id IN (%s)
	`, ph), args...)
	if err != nil {
		return nil, fmt.Errorf("get nodes by ids: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// Orphans returns nodes with no edges in either direction.
func (db *DB) Orphans() ([]Node, error) {
	rows, err := db.Query(`
		SELECT id, type, title, content, aka, weight, domains, status, audience, extra,
			created_at, updated_at, last_accessed
		FROM nodes WHERE id NOT IN
			(SELECT from_id FROM edges UNION SELECT to_id FROM edges)
	`)
	if err != nil {
		return nil, fmt.Errorf("orphans: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// WeightRow is a lightweight projection for decay batching.
type WeightRow struct {
	ID           string
	Weight       float64
	LastAccessed int64
}

// NodesForDecay returns id/weight/last_accessed for every node.
func (db *DB) NodesForDecay() ([]WeightRow, error) {
	rows, err := db.Query("SELECT id, weight, last_accessed FROM nodes")
	if err != nil {
		return nil, fmt.Errorf("nodes for decay: %w", err)
	}
	defer rows.Close()

	var out []WeightRow
	for rows.Next() {
		var r WeightRow
		if err := rows.Scan(&r.ID, &r.Weight, &r.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan weight row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GraphStats summarizes graph shape and health.
type GraphStats struct {
	NodeCount   int     `json:"node_count"`
	EdgeCount   int     `json:"edge_count"`
	OrphanCount int     `json:"orphan_count"`
	AvgWeight   float64 `json:"avg_weight"`
	MaxDegree   int     `json:"max_degree"`
	MaxDegreeID string  `json:"max_degree_id,omitempty"`
}

// Stats computes basic graph statistics.
func (db *DB) Stats() (*GraphStats, error) {
	var s GraphStats
	if err := db.QueryRow("SELECT COUNT(*), COALESCE(AVG(weight), 0) FROM nodes").
		Scan(&s.NodeCount, &s.AvgWeight); err != nil {
		return nil, fmt.Errorf("stats nodes: %w", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&s.EdgeCount); err != nil {
		return nil, fmt.Errorf("stats edges: %w", err)
	}
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM nodes WHERE id NOT IN
			(SELECT from_id FROM edges UNION SELECT to_id FROM edges)
	`).Scan(&s.OrphanCount); err != nil {
		return nil, fmt.Errorf("stats orphans: %w", err)
	}

	row := db.QueryRow(`
		SELECT nid, COUNT(*) AS degree FROM (
			SELECT from_id AS nid FROM edges UNION ALL SELECT to_id FROM edges
		) GROUP BY nid ORDER BY degree DESC LIMIT 1
	`)
	if err := row.Scan(&s.MaxDegreeID, &s.MaxDegree); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("stats degree: %w", err)
	}
	return &s, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var aka, domains, extra string
	err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Content, &aka, &n.Weight, &domains,
		&n.Status, &n.Audience, &extra, &n.CreatedAt, &n.UpdatedAt, &n.LastAccessed)
	if err != nil {
		return nil, err
	}
	decodeJSONFields(&n, aka, domains, extra)
	return &n, nil
}

func jsonUnmarshal(s string, v any) {
	_ = json.Unmarshal([]byte(s), v)
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}
