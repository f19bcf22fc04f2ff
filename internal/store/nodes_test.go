package store

import (
	"testing"
	"time"
)

func mustCreate(t *testing.T, db *DB, n *Node) *Node {
	t.Helper()
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode(%s): %v", n.Title, err)
	}
	return n
}

func TestCreateNodeDefaults(t *testing.T) {
	db := testDB(t)

	n := mustCreate(t, db, &Node{Title: "jwt rotation", Weight: 0.7})

	if n.ID == "" {
		t.Fatal("expected generated ID")
	}
	if len(n.ID) != 12 {
		t.Errorf("ID length = %d, want 12", len(n.ID))
	}
	if n.Type != "concept" {
		t.Errorf("Type = %q, want concept", n.Type)
	}
	if n.Status != "active" {
		t.Errorf("Status = %q, want active", n.Status)
	}
	if n.Audience != "private" {
		t.Errorf("Audience = %q, want private", n.Audience)
	}
	if n.CreatedAt == 0 || n.LastAccessed == 0 {
		t.Error("expected timestamps to be set")
	}
}

func TestCreateNodeClampsWeight(t *testing.T) {
	db := testDB(t)

	n := mustCreate(t, db, &Node{Title: "over", Weight: 2.5})
	if n.Weight != 1.0 {
		t.Errorf("Weight = %v, want 1.0", n.Weight)
	}

	n = mustCreate(t, db, &Node{Title: "under", Weight: -3})
	if n.Weight != 0 {
		t.Errorf("Weight = %v, want 0", n.Weight)
	}
}

func TestGetNode(t *testing.T) {
	db := testDB(t)

	n := mustCreate(t, db, &Node{
		Title:   "auth service",
		AKA:     []string{"authsvc"},
		Domains: []string{"backend", "security"},
		Extra:   map[string]any{"owner": "platform"},
	})

	got, err := db.GetNode(n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got == nil {
		t.Fatal("GetNode returned nil")
	}
	if got.Title != "auth service" {
		t.Errorf("Title = %q", got.Title)
	}
	if len(got.AKA) != 1 || got.AKA[0] != "authsvc" {
		t.Errorf("AKA = %v", got.AKA)
	}
	if len(got.Domains) != 2 {
		t.Errorf("Domains = %v", got.Domains)
	}
	if got.Extra["owner"] != "platform" {
		t.Errorf("Extra = %v", got.Extra)
	}
}

func TestGetNodeMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetNode("nope")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing node, got %+v", got)
	}
}

func TestGetNodeByTitle(t *testing.T) {
	db := testDB(t)

	n := mustCreate(t, db, &Node{Title: "Postgres Migration", AKA: []string{"pg-migrate"}})

	got, err := db.GetNodeByTitle("postgres migration")
	if err != nil {
		t.Fatalf("GetNodeByTitle: %v", err)
	}
	if got == nil || got.ID != n.ID {
		t.Error("case-insensitive title lookup failed")
	}

	got, err = db.GetNodeByTitle("PG-Migrate")
	if err != nil {
		t.Fatalf("GetNodeByTitle (aka): %v", err)
	}
	if got == nil || got.ID != n.ID {
		t.Error("alias lookup failed")
	}

	got, err = db.GetNodeByTitle("no such thing")
	if err != nil {
		t.Fatalf("GetNodeByTitle (missing): %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown title")
	}
}

func TestUpdateNode(t *testing.T) {
	db := testDB(t)

	n := mustCreate(t, db, &Node{Title: "draft", Weight: 0.5})
	id := n.ID

	n.Title = "final"
	n.Status = "archived"
	n.Weight = 0.9
	if err := db.UpdateNode(n); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}

	got, _ := db.GetNode(id)
	if got.Title != "final" || got.Status != "archived" || got.Weight != 0.9 {
		t.Errorf("update not persisted: %+v", got)
	}
	if got.ID != id {
		t.Error("ID changed on update")
	}
}

func TestTouchNodesMonotonic(t *testing.T) {
	db := testDB(t)

	n := mustCreate(t, db, &Node{Title: "touched"})

	future := time.Now().UnixMilli() + 60_000
	if err := db.TouchNodes([]string{n.ID}, future); err != nil {
		t.Fatalf("TouchNodes: %v", err)
	}
	got, _ := db.GetNode(n.ID)
	if got.LastAccessed != future {
		t.Errorf("LastAccessed = %d, want %d", got.LastAccessed, future)
	}

	// An older timestamp never moves the clock backwards.
	if err := db.TouchNodes([]string{n.ID}, future-30_000); err != nil {
		t.Fatalf("TouchNodes (older): %v", err)
	}
	got, _ = db.GetNode(n.ID)
	if got.LastAccessed != future {
		t.Errorf("LastAccessed moved backwards: %d", got.LastAccessed)
	}
}

func TestBoostNode(t *testing.T) {
	db := testDB(t)

	n := mustCreate(t, db, &Node{Title: "fading", Weight: 0.1})
	if err := db.BoostNode(n.ID); err != nil {
		t.Fatalf("BoostNode: %v", err)
	}

	got, _ := db.GetNode(n.ID)
	if got.Weight != 1.0 {
		t.Errorf("Weight = %v, want 1.0", got.Weight)
	}
}

func TestListNodesFilter(t *testing.T) {
	db := testDB(t)

	mustCreate(t, db, &Node{Title: "q1", Type: "question", Weight: 0.9})
	mustCreate(t, db, &Node{Title: "q2", Type: "question", Status: "resolved", Weight: 0.5})
	mustCreate(t, db, &Node{Title: "c1", Type: "concept", Weight: 0.7})

	questions, err := db.ListNodes(NodeFilter{Type: "question"})
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[0].Title != "q1" {
		t.Errorf("expected weight-descending order, got %q first", questions[0].Title)
	}

	active, err := db.ListNodes(NodeFilter{Type: "question", Status: "active"})
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(active) != 1 || active[0].Title != "q1" {
		t.Errorf("status filter failed: %+v", active)
	}

	limited, err := db.ListNodes(NodeFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored: got %d", len(limited))
	}
}

func TestGetNodesByIDs(t *testing.T) {
	db := testDB(t)

	a := mustCreate(t, db, &Node{Title: "a"})
	b := mustCreate(t, db, &Node{Title: "b"})

	nodes, err := db.GetNodesByIDs([]string{a.ID, "missing", b.ID})
	if err != nil {
		t.Fatalf("GetNodesByIDs: %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("got %d nodes, want 2 (missing silently omitted)", len(nodes))
	}

	nodes, err = db.GetNodesByIDs(nil)
	if err != nil || nodes != nil {
		t.Errorf("empty input should return nil, nil")
	}
}

func TestOrphansAndStats(t *testing.T) {
	db := testDB(t)

	a := mustCreate(t, db, &Node{Title: "connected-a", Weight: 0.8})
	b := mustCreate(t, db, &Node{Title: "connected-b", Weight: 0.6})
	orphan := mustCreate(t, db, &Node{Title: "loner", Weight: 0.4})

	if err := db.AddEdge(a.ID, b.ID, "relates_to", 0.5, "", false); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	orphans, err := db.Orphans()
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != orphan.ID {
		t.Errorf("Orphans = %+v", orphans)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NodeCount != 3 {
		t.Errorf("NodeCount = %d, want 3", stats.NodeCount)
	}
	if stats.EdgeCount != 1 {
		t.Errorf("EdgeCount = %d, want 1", stats.EdgeCount)
	}
	if stats.OrphanCount != 1 {
		t.Errorf("OrphanCount = %d, want 1", stats.OrphanCount)
	}
	if stats.AvgWeight < 0.59 || stats.AvgWeight > 0.61 {
		t.Errorf("AvgWeight = %v, want 0.6", stats.AvgWeight)
	}
}

func TestNodesForDecay(t *testing.T) {
	db := testDB(t)

	mustCreate(t, db, &Node{Title: "one", Weight: 0.5})
	mustCreate(t, db, &Node{Title: "two", Weight: 0.8})

	rows, err := db.NodesForDecay()
	if err != nil {
		t.Fatalf("NodesForDecay: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r.ID == "" || r.LastAccessed == 0 {
			t.Errorf("incomplete row: %+v", r)
		}
	}
}
