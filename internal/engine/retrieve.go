package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kindexlab/kindex/internal/store"
	"golang.org/x/sync/errgroup"
)

// topEdges is how many outgoing relationships are attached to each
// surfaced result.
const topEdges = 5

// seedExpansion caps how many lexical hits seed the graph signal when no
// explicit seeds are given.
const seedExpansion = 5

// RetrieveOpts describes one retrieval query.
type RetrieveOpts struct {
	Query       string   // lexical/vector query text; may be empty when seeds are given
	Seeds       []string // explicit traversal seeds; derived from lexical hits when empty
	MaxHops     int      // 0 = configured default
	Audience    string   // requester scope; empty = private (owner)
	Tier        Tier     // explicit tier; empty = auto-select from TokenBudget
	TokenBudget int      // available tokens; 0 = no budget given
	Limit       int      // surfaced results; 0 = configured default
}

// RankedNode is one surfaced retrieval result.
type RankedNode struct {
	Node  store.Node   `json:"node"`
	Score float64      `json:"score"`
	Edges []store.Edge `json:"edges,omitempty"`
}

// RetrieveResult is the formatted block plus the structured ranking it
// was rendered from.
type RetrieveResult struct {
	Tier    Tier         `json:"tier"`
	Block   string       `json:"block"`
	Results []RankedNode `json:"results"`
}

// Retrieve answers a query by fanning out the lexical, graph proximity,
// and (when configured) vector similarity signals, fusing their rankings
// with RRF, and compressing the fused list into a tier-formatted block.
//
// Signal failures degrade: the failing signal contributes an empty list
// and the rest proceed. Only malformed inputs fail the call, and they are
// rejected before any graph access.
func (e *Engine) Retrieve(ctx context.Context, opts RetrieveOpts) (*RetrieveResult, error) {
	if opts.MaxHops < 0 {
		return nil, fmt.Errorf("%w: negative hop count %d", ErrInvalidInput, opts.MaxHops)
	}
	if strings.TrimSpace(opts.Query) == "" && len(opts.Seeds) == 0 {
		return nil, fmt.Errorf("%w: empty query with no seeds", ErrInvalidInput)
	}
	audience, err := ParseScope(opts.Audience)
	if err != nil {
		return nil, err
	}
	if opts.Tier != "" {
		if _, ok := TierBudgets[opts.Tier]; !ok {
			return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, opts.Tier)
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.Retrieval.Limit
	}
	maxHops := opts.MaxHops
	if maxHops == 0 {
		maxHops = e.Retrieval.MaxHops
	}

	// Over-fetch per signal so fusion has overlap to work with.
	perSignal := limit * 3

	// Lexical and vector signals run concurrently. Each one logs and
	// degrades on failure rather than failing the query.
	var lexical, vector []Candidate
	g, gctx := errgroup.WithContext(ctx)

	if strings.TrimSpace(opts.Query) != "" {
		g.Go(func() error {
			ranked, err := e.lexicalRank(opts.Query, audience, perSignal)
			if err != nil {
				slog.Warn("lexical signal unavailable", "err", err)
				return nil
			}
			lexical = ranked
			return nil
		})

		if e.Embedder != nil {
			g.Go(func() error {
				ranked, err := e.vectorRank(gctx, opts.Query, audience, perSignal)
				if err != nil {
					slog.Warn("vector signal unavailable", "err", err)
					return nil
				}
				vector = ranked
				return nil
			})
		}
	}
	// Signals degrade individually; the group itself never errors.
	_ = g.Wait()

	// Graph proximity expands from explicit seeds, or from the top
	// lexical hits when none were given.
	seeds := opts.Seeds
	if len(seeds) == 0 {
		for i, c := range lexical {
			if i >= seedExpansion {
				break
			}
			seeds = append(seeds, c.ID)
		}
	}
	var graph []Candidate
	if len(seeds) > 0 {
		ranked, err := ProximityRank(e.DB, seeds, ProximityOpts{
			MaxHops:   maxHops,
			MinWeight: e.Retrieval.MinWeight,
			Audience:  audience,
			Limit:     perSignal,
		})
		if err != nil {
			slog.Warn("graph signal unavailable", "err", err)
		} else {
			graph = ranked
		}
	}

	fused := FuseRRF(e.Retrieval.RRFK, lexical, graph, vector)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	results, err := e.hydrate(fused)
	if err != nil {
		return nil, err
	}

	// Surfacing is an access: reset the decay clock on results and their
	// outgoing relationships. Candidates that ranked but were not
	// surfaced keep their clocks.
	if len(results) > 0 {
		now := time.Now().UnixMilli()
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.Node.ID
		}
		if err := e.DB.TouchNodes(ids, now); err != nil {
			slog.Warn("touch surfaced nodes", "err", err)
		}
		if err := e.DB.TouchEdgesFrom(ids, now); err != nil {
			slog.Warn("touch surfaced edges", "err", err)
		}
	}

	tier := SelectTier(opts.Tier, opts.TokenBudget)
	block := e.FormatBlock(tier, opts.Query, results, opts.TokenBudget)

	return &RetrieveResult{Tier: tier, Block: block, Results: results}, nil
}

// hydrate fetches full nodes for a fused ranking, preserving order.
// IDs that no longer resolve are dropped, not errors.
func (e *Engine) hydrate(fused []Fused) ([]RankedNode, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ID
	}
	nodes, err := e.DB.GetNodesByIDs(ids)
	if err != nil {
		return nil, err
	}
	nodeMap := make(map[string]store.Node, len(nodes))
	for _, n := range nodes {
		nodeMap[n.ID] = n
	}

	var results []RankedNode
	for _, f := range fused {
		n, ok := nodeMap[f.ID]
		if !ok {
			continue
		}
		edges, err := e.DB.EdgesFrom(n.ID, topEdges)
		if err != nil {
			slog.Warn("fetch edges for result", "node", n.ID, "err", err)
		}
		results = append(results, RankedNode{Node: n, Score: f.Score, Edges: edges})
	}
	return results, nil
}
