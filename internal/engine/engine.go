// Package engine implements the retrieval-and-ranking core: multi-signal
// candidate ranking, reciprocal rank fusion, continuous weight decay, and
// token-budgeted context formatting.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/kindexlab/kindex/internal/config"
	"github.com/kindexlab/kindex/internal/store"
)

// ErrInvalidInput is returned for malformed retrieval requests. It is the
// only error class that propagates to callers before any graph access.
var ErrInvalidInput = errors.New("invalid input")

// Engine orchestrates retrieval, fusion, formatting, and weight decay
// against a single graph store. Safe for concurrent retrievals; decay
// applies per-row atomic writes and never holds a global lock.
type Engine struct {
	DB       *store.DB
	Embedder Embedder

	Retrieval config.RetrievalConfig
	DecayCfg  config.DecayConfig

	stopCh chan struct{}
}

// New creates an Engine with the given store and configuration.
func New(db *store.DB, cfg config.Config) *Engine {
	return &Engine{
		DB:        db,
		Retrieval: cfg.Retrieval,
		DecayCfg:  cfg.Decay,
		stopCh:    make(chan struct{}),
	}
}

// SetEmbedder configures the optional vector similarity provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// StartDecayTimer runs a decay cycle at startup and then once per cycle.
func (e *Engine) StartDecayTimer() {
	if updated, err := e.RunDecayCycle(time.Now()); err != nil {
		slog.Error("decay cycle failed", "err", err)
	} else if updated > 0 {
		slog.Info("decay cycle complete", "updated", updated)
	}

	go func() {
		ticker := time.NewTicker(time.Duration(e.DecayCfg.CycleHours) * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if updated, err := e.RunDecayCycle(time.Now()); err != nil {
					slog.Error("decay cycle failed", "err", err)
				} else if updated > 0 {
					slog.Info("decay cycle complete", "updated", updated)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// lexicalRank runs the BM25 full-text signal, restricted to nodes the
// requester may see. Scores combine FTS rank with node weight; fusion is
// rank-based so only the ordering matters downstream.
func (e *Engine) lexicalRank(query string, audience Scope, limit int) ([]Candidate, error) {
	results, err := e.DB.Search(query, visibleScopes(audience), limit)
	if err != nil {
		return nil, err
	}
	ranked := make([]Candidate, 0, len(results))
	for _, r := range results {
		score := r.Rank
		if score < 0 {
			score = -score
		}
		ranked = append(ranked, Candidate{
			ID:     r.Node.ID,
			Score:  score + r.Node.Weight,
			Source: SignalLexical,
		})
	}
	return ranked, nil
}

// vectorRank runs the optional cosine similarity signal over stored
// embeddings. Requires a configured Embedder.
func (e *Engine) vectorRank(ctx context.Context, query string, audience Scope, limit int) ([]Candidate, error) {
	queryVec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	vectors, err := e.DB.AllVectors()
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	ids := make([]string, len(vectors))
	for i, v := range vectors {
		ids[i] = v.NodeID
	}
	nodes, err := e.DB.GetNodesByIDs(ids)
	if err != nil {
		return nil, err
	}
	nodeMap := make(map[string]store.Node, len(nodes))
	for _, n := range nodes {
		nodeMap[n.ID] = n
	}

	var ranked []Candidate
	for _, v := range vectors {
		n, ok := nodeMap[v.NodeID]
		if !ok || !Visible(audience, Scope(n.Audience)) {
			continue
		}
		sim := CosineSimilarity(queryVec, v.Embedding)
		if sim <= 0 {
			continue
		}
		ranked = append(ranked, Candidate{ID: v.NodeID, Score: sim, Source: SignalVector})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// EmbedNode generates and stores an embedding for a single node.
func (e *Engine) EmbedNode(ctx context.Context, n *store.Node) error {
	if e.Embedder == nil {
		return nil
	}
	text := nodeText(n)
	if text == "" {
		return nil
	}
	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return e.DB.SaveVector(n.ID, vec, e.Embedder.Model())
}

// EmbedMissing embeds all nodes that don't have a vector or whose vector
// was built by a different model.
func (e *Engine) EmbedMissing(ctx context.Context) (int, error) {
	if e.Embedder == nil {
		return 0, nil
	}

	nodes, err := e.DB.ListNodes(store.NodeFilter{})
	if err != nil {
		return 0, err
	}

	embedded := 0
	for i := range nodes {
		if nodeText(&nodes[i]) == "" {
			continue
		}
		existing, err := e.DB.GetVector(nodes[i].ID)
		if err != nil {
			slog.Warn("embed missing: get vector", "node", nodes[i].ID, "err", err)
			continue
		}
		if existing != nil && existing.Model == e.Embedder.Model() {
			continue
		}
		if err := e.EmbedNode(ctx, &nodes[i]); err != nil {
			slog.Warn("embed missing", "node", nodes[i].ID, "err", err)
			continue
		}
		embedded++
	}
	return embedded, nil
}
