package engine

import (
	"sort"

	"github.com/kindexlab/kindex/internal/store"
)

// ProximityOpts bounds a graph-proximity ranking pass.
type ProximityOpts struct {
	MaxHops   int     // hop bound; 0 means the default of 2
	MinWeight float64 // prune paths whose cumulative edge weight falls below this
	Audience  Scope   // requester visibility
	Limit     int     // 0 means unbounded
}

type bfsEntry struct {
	id    string
	depth int
	cum   float64 // product of edge weights along the discovery path
}

// ProximityRank performs bounded breadth-first traversal from the seed
// nodes and scores each reachable node by graph distance: score =
// cumulative edge weight / (1 + hop distance). Each node is visited at
// most once — the first-discovered hop distance wins. Edge direction is
// ignored; neighbors outside the requester's audience are pruned. Seeds
// that don't exist (or aren't visible) are skipped, never an error.
func ProximityRank(db *store.DB, seeds []string, opts ProximityOpts) ([]Candidate, error) {
	maxHops := opts.MaxHops
	if maxHops == 0 {
		maxHops = 2
	}

	visited := make(map[string]bool)
	scores := make(map[string]float64)
	var frontier []bfsEntry

	for _, seed := range seeds {
		if visited[seed] {
			continue
		}
		n, err := db.GetNode(seed)
		if err != nil {
			return nil, err
		}
		if n == nil || !Visible(opts.Audience, Scope(n.Audience)) {
			continue
		}
		visited[seed] = true
		scores[seed] = 1.0 // hop 0, full weight
		frontier = append(frontier, bfsEntry{id: seed, depth: 0, cum: 1.0})
	}

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur.depth >= maxHops {
			continue
		}

		neighbors, err := db.Neighbors(cur.id)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if visited[nb.Node.ID] {
				continue
			}
			if !Visible(opts.Audience, Scope(nb.Node.Audience)) {
				continue
			}
			cum := cur.cum * nb.Edge.Weight
			if cum < opts.MinWeight {
				continue
			}

			depth := cur.depth + 1
			visited[nb.Node.ID] = true
			scores[nb.Node.ID] = cum / float64(1+depth)
			frontier = append(frontier, bfsEntry{id: nb.Node.ID, depth: depth, cum: cum})
		}
	}

	ranked := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, Candidate{ID: id, Score: score, Source: SignalGraph})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked, nil
}
