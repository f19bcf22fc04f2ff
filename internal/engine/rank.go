package engine

import "sort"

// Signal identifies a ranking signal source. The set is closed: fusion
// only ever sees these three.
type Signal string

const (
	SignalLexical Signal = "lexical"
	SignalGraph   Signal = "graph"
	SignalVector  Signal = "vector"
)

// Candidate is an ephemeral (node id, score, source) tuple produced by a
// single ranking signal.
type Candidate struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Source Signal  `json:"source"`
}

// Fused is one entry of the merged ranking.
type Fused struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// DefaultRRFK is the standard damping constant from the RRF literature.
const DefaultRRFK = 60

// FuseRRF merges ranked candidate lists with Reciprocal Rank Fusion.
// Each id at 1-indexed rank r in a list contributes 1/(k+r) to its fused
// score; absence from a list contributes nothing. The output contains the
// union of input ids with no duplicates, sorted by fused score descending.
// Exact ties break by ascending id so identical inputs always produce
// identical orderings.
func FuseRRF(k int, lists ...[]Candidate) []Fused {
	if k <= 0 {
		k = DefaultRRFK
	}

	scores := make(map[string]float64)
	for _, list := range lists {
		for i, c := range list {
			scores[c.ID] += 1.0 / float64(k+i+1)
		}
	}

	fused := make([]Fused, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Fused{ID: id, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}
