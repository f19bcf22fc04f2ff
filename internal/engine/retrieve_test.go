package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindexlab/kindex/internal/store"
)

func TestRetrieveRejectsMalformedInput(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	_, err := e.Retrieve(ctx, RetrieveOpts{Query: "x", MaxHops: -1})
	assert.ErrorIs(t, err, ErrInvalidInput, "negative hop count")

	_, err = e.Retrieve(ctx, RetrieveOpts{Query: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput, "empty query with no seeds")

	_, err = e.Retrieve(ctx, RetrieveOpts{Query: "x", Audience: "everyone"})
	assert.ErrorIs(t, err, ErrInvalidInput, "unknown audience")

	_, err = e.Retrieve(ctx, RetrieveOpts{Query: "x", Tier: Tier("verbose")})
	assert.ErrorIs(t, err, ErrInvalidInput, "unknown tier")
}

func TestRetrieveLexicalPlusGraph(t *testing.T) {
	e := testEngine(t)

	hit := &store.Node{Title: "circuit breaker", Content: "trips after five consecutive failures"}
	neighbor := &store.Node{Title: "retry budget", Content: "caps retries per window"}
	unrelated := &store.Node{Title: "holiday calendar", Content: "company days off"}
	require.NoError(t, e.DB.CreateNode(hit))
	require.NoError(t, e.DB.CreateNode(neighbor))
	require.NoError(t, e.DB.CreateNode(unrelated))
	require.NoError(t, e.DB.AddEdge(hit.ID, neighbor.ID, "relates_to", 0.9, "", false))

	result, err := e.Retrieve(context.Background(), RetrieveOpts{Query: "circuit breaker"})
	require.NoError(t, err)

	ids := make([]string, len(result.Results))
	for i, r := range result.Results {
		ids[i] = r.Node.ID
	}
	assert.Contains(t, ids, hit.ID, "lexical hit surfaces")
	assert.Contains(t, ids, neighbor.ID, "graph expansion from lexical hits surfaces neighbors")
	assert.NotContains(t, ids, unrelated.ID)

	assert.Equal(t, hit.ID, result.Results[0].Node.ID, "direct match outranks its neighbor")
	assert.NotEmpty(t, result.Block)
}

func TestRetrieveExplicitSeeds(t *testing.T) {
	e := testEngine(t)

	seed := &store.Node{Title: "ingest pipeline"}
	downstream := &store.Node{Title: "parquet writer"}
	require.NoError(t, e.DB.CreateNode(seed))
	require.NoError(t, e.DB.CreateNode(downstream))
	require.NoError(t, e.DB.AddEdge(seed.ID, downstream.ID, "feeds", 0.9, "", false))

	// No query at all: pure graph traversal from the seed.
	result, err := e.Retrieve(context.Background(), RetrieveOpts{Seeds: []string{seed.ID}})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, seed.ID, result.Results[0].Node.ID)
}

func TestRetrieveAudienceFiltering(t *testing.T) {
	e := testEngine(t)

	require.NoError(t, e.DB.CreateNode(&store.Node{Title: "deploy runbook", Audience: "public"}))
	require.NoError(t, e.DB.CreateNode(&store.Node{Title: "deploy credentials", Audience: "private"}))

	result, err := e.Retrieve(context.Background(), RetrieveOpts{Query: "deploy", Audience: "public"})
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.Equal(t, "deploy runbook", result.Results[0].Node.Title)
}

func TestRetrieveTouchesSurfacedResults(t *testing.T) {
	e := testEngine(t)

	n := &store.Node{Title: "stale note", Content: "left alone for a month"}
	require.NoError(t, e.DB.CreateNode(n))
	old := time.Now().Add(-30 * 24 * time.Hour).UnixMilli()
	setLastAccessed(t, e.DB, n.ID, old)

	_, err := e.Retrieve(context.Background(), RetrieveOpts{Query: "stale note"})
	require.NoError(t, err)

	got, err := e.DB.GetNode(n.ID)
	require.NoError(t, err)
	assert.Greater(t, got.LastAccessed, old, "surfacing resets the access clock")
}

func TestRetrieveLimit(t *testing.T) {
	e := testEngine(t)

	for i := 0; i < 6; i++ {
		require.NoError(t, e.DB.CreateNode(&store.Node{
			Title:   "widget " + string(rune('a'+i)),
			Content: "widget inventory entry",
		}))
	}

	result, err := e.Retrieve(context.Background(), RetrieveOpts{Query: "widget", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, result.Results, 3)
}

func TestRetrieveDeterministic(t *testing.T) {
	e := testEngine(t)

	for _, title := range []string{"alpha cache", "beta cache", "gamma cache"} {
		require.NoError(t, e.DB.CreateNode(&store.Node{Title: title, Content: "cache layer"}))
	}

	first, err := e.Retrieve(context.Background(), RetrieveOpts{Query: "cache"})
	require.NoError(t, err)
	second, err := e.Retrieve(context.Background(), RetrieveOpts{Query: "cache"})
	require.NoError(t, err)

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Node.ID, second.Results[i].Node.ID,
			"identical queries produce identical orderings")
	}
}

func TestRetrieveTierSelection(t *testing.T) {
	e := testEngine(t)
	require.NoError(t, e.DB.CreateNode(&store.Node{Title: "observability stack", Content: "metrics and traces"}))

	result, err := e.Retrieve(context.Background(), RetrieveOpts{Query: "observability", TokenBudget: 210})
	require.NoError(t, err)
	assert.Equal(t, TierExecutive, result.Tier)

	result, err = e.Retrieve(context.Background(), RetrieveOpts{Query: "observability", Tier: TierIndex})
	require.NoError(t, err)
	assert.Equal(t, TierIndex, result.Tier)
	assert.NotEmpty(t, result.Block)
}

func TestRetrieveAttachesTopEdges(t *testing.T) {
	e := testEngine(t)

	hub := &store.Node{Title: "api gateway", Content: "routes all inbound traffic"}
	require.NoError(t, e.DB.CreateNode(hub))
	for i := 0; i < 7; i++ {
		spoke := &store.Node{Title: "svc " + string(rune('a'+i))}
		require.NoError(t, e.DB.CreateNode(spoke))
		require.NoError(t, e.DB.AddEdge(hub.ID, spoke.ID, "routes_to", 0.5, "", false))
	}

	result, err := e.Retrieve(context.Background(), RetrieveOpts{Query: "api gateway", MaxHops: 1})
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, hub.ID, result.Results[0].Node.ID)
	assert.Len(t, result.Results[0].Edges, topEdges, "edge attachment is capped")
}
