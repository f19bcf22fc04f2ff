package engine

import "fmt"

// Scope is an audience visibility level. Scopes form a strict hierarchy:
// private < team < org < public. A node's scope names the widest circle
// allowed to see it, so a requester operating at a narrow scope sees
// everything at their level and wider, while a public requester sees only
// public nodes.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeTeam    Scope = "team"
	ScopeOrg     Scope = "org"
	ScopePublic  Scope = "public"
)

var scopeRank = map[Scope]int{
	ScopePrivate: 0,
	ScopeTeam:    1,
	ScopeOrg:     2,
	ScopePublic:  3,
}

// ParseScope validates an audience string. Empty defaults to private
// (the requester is assumed to be the graph's owner).
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return ScopePrivate, nil
	}
	sc := Scope(s)
	if _, ok := scopeRank[sc]; !ok {
		return "", fmt.Errorf("%w: unknown audience %q", ErrInvalidInput, s)
	}
	return sc, nil
}

// Visible reports whether a node at scope entity may be surfaced to a
// requester operating at scope requester. Pure predicate, independent of
// graph representation.
func Visible(requester, entity Scope) bool {
	er, ok := scopeRank[entity]
	if !ok {
		// Unknown node scopes are treated as private: only the owner sees them.
		er = 0
	}
	rr, ok := scopeRank[requester]
	if !ok {
		return false
	}
	return er >= rr
}

// visibleScopes returns every scope the requester may see, for SQL-level
// audience filtering.
func visibleScopes(requester Scope) []string {
	rr := scopeRank[requester]
	var out []string
	for sc, rank := range scopeRank {
		if rank >= rr {
			out = append(out, string(sc))
		}
	}
	return out
}
