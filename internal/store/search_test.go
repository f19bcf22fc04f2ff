package store

import (
	"testing"
)

func TestSearchFTS(t *testing.T) {
	db := testDB(t)

	mustCreate(t, db, &Node{Title: "JWT rotation policy", Content: "rotate signing keys every 90 days"})
	mustCreate(t, db, &Node{Title: "database backups", Content: "nightly snapshots to s3"})

	results, err := db.Search("jwt rotation", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Node.Title != "JWT rotation policy" {
		t.Errorf("Title = %q", results[0].Node.Title)
	}
	if results[0].Rank >= 0 {
		t.Errorf("Rank = %v, want negative (BM25 convention)", results[0].Rank)
	}
}

func TestSearchMatchesAlias(t *testing.T) {
	db := testDB(t)

	mustCreate(t, db, &Node{Title: "Kubernetes cluster", AKA: []string{"k8s"}})

	results, err := db.Search("k8s", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("alias not indexed: got %d results", len(results))
	}
}

func TestSearchAudienceScopes(t *testing.T) {
	db := testDB(t)

	mustCreate(t, db, &Node{Title: "secret roadmap", Audience: "private"})
	mustCreate(t, db, &Node{Title: "public roadmap", Audience: "public"})

	results, err := db.Search("roadmap", []string{"public"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Node.Title != "public roadmap" {
		t.Errorf("scope filter failed: %+v", results)
	}

	results, err = db.Search("roadmap", []string{"private", "team", "org", "public"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestSearchExcludesArchived(t *testing.T) {
	db := testDB(t)

	mustCreate(t, db, &Node{Title: "old design", Status: "archived"})
	mustCreate(t, db, &Node{Title: "new design"})

	results, err := db.Search("design", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Node.Title != "new design" {
		t.Errorf("archived node surfaced: %+v", results)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	db := testDB(t)

	mustCreate(t, db, &Node{Title: "anything"})

	results, err := db.Search("   ", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Errorf("empty query should return nil, got %+v", results)
	}
}

func TestSanitizeFTS(t *testing.T) {
	got := sanitizeFTS("fix auth bug")
	want := `"fix" "auth" "bug"`
	if got != want {
		t.Errorf("sanitizeFTS = %q, want %q", got, want)
	}

	got = sanitizeFTS(`"quoted"`)
	if got != `"quoted"` {
		t.Errorf("sanitizeFTS = %q", got)
	}
}
