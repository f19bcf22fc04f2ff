package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{ID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func TestFuseRRFUnionNoDuplicates(t *testing.T) {
	fused := FuseRRF(60,
		candidates("a", "b", "c"),
		candidates("b", "d"),
	)

	require.Len(t, fused, 4, "output is the union of input ids")
	seen := make(map[string]bool)
	for _, f := range fused {
		assert.False(t, seen[f.ID], "duplicate id %s", f.ID)
		seen[f.ID] = true
	}
}

func TestFuseRRFScores(t *testing.T) {
	fused := FuseRRF(60, candidates("a", "b"))

	require.Len(t, fused, 2)
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-12)
	assert.InDelta(t, 1.0/62, fused[1].Score, 1e-12)
	assert.Equal(t, "a", fused[0].ID, "better rank fuses higher")
}

func TestFuseRRFMultiSignalAgreement(t *testing.T) {
	// An entity ranked second in every signal outranks one ranked first
	// in a single signal: 3/(k+2) > 1/(k+1) at k=60.
	fused := FuseRRF(60,
		candidates("solo", "agreed"),
		candidates("x", "agreed"),
		candidates("y", "agreed"),
	)

	assert.Equal(t, "agreed", fused[0].ID)
	assert.InDelta(t, 3.0/62, fused[0].Score, 1e-12)
}

func TestFuseRRFDeterministicTies(t *testing.T) {
	// Ids appearing at the same rank in disjoint lists tie exactly;
	// ascending id breaks the tie.
	a := FuseRRF(60, candidates("zeta"), candidates("alpha"))
	b := FuseRRF(60, candidates("alpha"), candidates("zeta"))

	require.Equal(t, a, b, "identical inputs in any list order fuse identically")
	assert.Equal(t, "alpha", a[0].ID)
	assert.Equal(t, "zeta", a[1].ID)
}

func TestFuseRRFAbsentSignalContributesNothing(t *testing.T) {
	with := FuseRRF(60, candidates("a"), candidates("a"), nil)
	without := FuseRRF(60, candidates("a"), candidates("a"))

	require.Equal(t, with, without, "an empty list is a no-op")
}

func TestFuseRRFZeroKDefaults(t *testing.T) {
	fused := FuseRRF(0, candidates("a"))
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/(DefaultRRFK+1), fused[0].Score, 1e-12)
}

func TestFuseRRFEmpty(t *testing.T) {
	assert.Empty(t, FuseRRF(60))
	assert.Empty(t, FuseRRF(60, nil, nil))
}
