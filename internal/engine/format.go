package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kindexlab/kindex/internal/store"
)

// Tier is one of five fixed context verbosity presets, ordered richest
// to sparsest.
type Tier string

const (
	TierFull       Tier = "full"       // everything: content, edges, open questions
	TierAbridged   Tier = "abridged"   // key nodes, trimmed content, edges preserved
	TierSummarized Tier = "summarized" // paragraph-form narrative per domain cluster
	TierExecutive  Tier = "executive"  // one line per active thread
	TierIndex      Tier = "index"      // titles and edge types only, no content
)

// TierBudgets maps each tier to its approximate token budget.
var TierBudgets = map[Tier]int{
	TierFull:       4000,
	TierAbridged:   1500,
	TierSummarized: 750,
	TierExecutive:  200,
	TierIndex:      100,
}

// tierOrder lists tiers richest-first for budget-driven selection.
var tierOrder = []Tier{TierFull, TierAbridged, TierSummarized, TierExecutive, TierIndex}

// SelectTier picks the tier to render. An explicit tier always wins.
// Otherwise the richest tier whose budget fits the available tokens is
// chosen; budgets below the smallest tier fall back to index, which
// truncates rather than fails. available <= 0 means no budget was given
// and defaults to abridged.
func SelectTier(explicit Tier, available int) Tier {
	if explicit != "" {
		return explicit
	}
	if available <= 0 {
		return TierAbridged
	}
	for _, tier := range tierOrder {
		if TierBudgets[tier] <= available {
			return tier
		}
	}
	return TierIndex
}

// estimateTokens approximates token count as chars/4.
func estimateTokens(s string) int {
	return len(s)/4 + 1
}

// FormatBlock renders a fused ranking as a context block for the given
// tier. Items are packed greedily in rank order: an item is included
// whole or not at all, and packing stops at the first item that would
// exceed the tier budget. The result is never empty — at minimum the
// header renders.
func (e *Engine) FormatBlock(tier Tier, query string, results []RankedNode, available int) string {
	if len(results) == 0 {
		return "## Kindex: No relevant context found.\n"
	}

	budget := TierBudgets[tier]
	// A below-minimum budget still renders: the index tier truncates
	// under its nominal size instead of failing.
	if tier == TierIndex && available > 0 && available < budget {
		budget = available
	}

	switch tier {
	case TierFull:
		return e.formatFull(query, results, budget)
	case TierAbridged:
		return e.formatAbridged(results, budget)
	case TierSummarized:
		return e.formatSummarized(results, budget)
	case TierExecutive:
		return e.formatExecutive(results, budget)
	default:
		return formatIndex(results, budget)
	}
}

func gatherDomains(results []RankedNode) []string {
	seen := make(map[string]bool)
	var domains []string
	for _, r := range results {
		for _, d := range r.Node.Domains {
			if !seen[d] {
				seen[d] = true
				domains = append(domains, d)
			}
		}
	}
	sort.Strings(domains)
	if len(domains) > 8 {
		domains = domains[:8]
	}
	return domains
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// fill appends item blocks greedily until the next would exceed budget.
func fill(b *strings.Builder, items []string, budget int) {
	used := estimateTokens(b.String())
	for _, item := range items {
		cost := estimateTokens(item)
		if used+cost > budget {
			break
		}
		b.WriteString(item)
		used += cost
	}
}

func (e *Engine) formatFull(query string, results []RankedNode, budget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Relevant Context (Kindex — auto-loaded)\n")
	fmt.Fprintf(&b, "**Level:** full | **Query:** %s\n", query)
	fmt.Fprintf(&b, "**Active domains:** [%s]\n\n### Key concepts\n", strings.Join(gatherDomains(results), ", "))

	items := make([]string, 0, len(results))
	for _, r := range results {
		var item strings.Builder
		fmt.Fprintf(&item, "\n#### [%s] %s (w=%.2f)\n", r.Node.Type, r.Node.Title, r.Node.Weight)
		if r.Node.Content != "" {
			item.WriteString(truncate(r.Node.Content, 600) + "\n")
		}
		if len(r.Node.AKA) > 0 {
			fmt.Fprintf(&item, "*AKA: %s*\n", strings.Join(r.Node.AKA, ", "))
		}
		if len(r.Edges) > 0 {
			var connected []string
			for _, edge := range r.Edges {
				connected = append(connected, fmt.Sprintf("%s [%s]", edgeTitle(edge), edge.Type))
			}
			fmt.Fprintf(&item, "*Connects: %s*\n", strings.Join(connected, ", "))
		}
		items = append(items, item.String())
	}
	fill(&b, items, budget)

	e.appendQuestions(&b, 5, true)
	e.appendDecisions(&b, 5, true)
	e.appendOperational(&b, true)
	return b.String()
}

func (e *Engine) formatAbridged(results []RankedNode, budget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Relevant Context (Kindex — auto-loaded)\n")
	fmt.Fprintf(&b, "**Level:** abridged | **Active domains:** [%s]\n\n### Key concepts\n",
		strings.Join(gatherDomains(results), ", "))

	items := make([]string, 0, len(results))
	for _, r := range results {
		var item strings.Builder
		fmt.Fprintf(&item, "- **%s** (%s): %s\n", r.Node.Title, r.Node.Type, truncate(r.Node.Content, 200))
		if len(r.Edges) > 0 {
			var connected []string
			for i, edge := range r.Edges {
				if i >= 3 {
					break
				}
				connected = append(connected, edgeTitle(edge))
			}
			fmt.Fprintf(&item, "  *Connected to: %s*\n", strings.Join(connected, ", "))
		}
		items = append(items, item.String())
	}
	fill(&b, items, budget)

	e.appendQuestions(&b, 3, false)
	e.appendDecisions(&b, 3, false)
	e.appendOperational(&b, false)
	return b.String()
}

func (e *Engine) formatSummarized(results []RankedNode, budget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Kindex Context (summarized)\n")
	fmt.Fprintf(&b, "**Domains:** %s\n\n", strings.Join(gatherDomains(results), ", "))

	// Group results by primary domain, preserving rank order within and
	// across groups.
	groups := make(map[string][]RankedNode)
	var order []string
	for _, r := range results {
		domain := "general"
		if len(r.Node.Domains) > 0 {
			domain = r.Node.Domains[0]
		}
		if _, seen := groups[domain]; !seen {
			order = append(order, domain)
		}
		groups[domain] = append(groups[domain], r)
	}

	items := make([]string, 0, len(order))
	for _, domain := range order {
		var summaries []string
		for i, r := range groups[domain] {
			if i >= 3 {
				break
			}
			if r.Node.Content != "" {
				summaries = append(summaries, fmt.Sprintf("%s: %s", r.Node.Title, truncate(r.Node.Content, 150)))
			} else {
				summaries = append(summaries, r.Node.Title)
			}
		}
		items = append(items, fmt.Sprintf("**%s:** %s\n\n", domain, strings.Join(summaries, "; ")))
	}
	fill(&b, items, budget)
	return b.String()
}

func (e *Engine) formatExecutive(results []RankedNode, budget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kindex [%s]: ", strings.Join(gatherDomains(results), ", "))

	items := make([]string, 0, len(results))
	for i, r := range results {
		if i >= 5 {
			break
		}
		if r.Node.Content != "" {
			items = append(items, fmt.Sprintf("%s — %s. ", r.Node.Title, truncate(r.Node.Content, 80)))
		} else {
			items = append(items, r.Node.Title+". ")
		}
	}
	fill(&b, items, budget)
	return strings.TrimRight(b.String(), " ") + "\n"
}

func formatIndex(results []RankedNode, budget int) string {
	var b strings.Builder
	b.WriteString("Kindex index:")

	items := make([]string, 0, len(results))
	for _, r := range results {
		entry := fmt.Sprintf(" %s(%s)", r.Node.Title, r.Node.Type)
		if len(r.Edges) > 0 {
			kinds := make([]string, 0, 3)
			seen := make(map[string]bool)
			for _, edge := range r.Edges {
				if len(kinds) >= 3 {
					break
				}
				if !seen[edge.Type] {
					seen[edge.Type] = true
					kinds = append(kinds, edge.Type)
				}
			}
			entry += fmt.Sprintf("→[%s]", strings.Join(kinds, ","))
		}
		items = append(items, entry+" |")
	}
	fill(&b, items, budget)
	return strings.TrimRight(b.String(), " |") + "\n"
}

func edgeTitle(e store.Edge) string {
	if e.ToTitle != "" {
		return e.ToTitle
	}
	return e.To
}

func (e *Engine) appendQuestions(b *strings.Builder, limit int, verbose bool) {
	questions, err := e.DB.ListNodes(store.NodeFilter{Type: "question", Status: "active", Limit: limit})
	if err != nil {
		slog.Warn("list open questions", "err", err)
		return
	}
	if len(questions) == 0 {
		return
	}
	b.WriteString("\n### Open questions\n")
	for _, q := range questions {
		fmt.Fprintf(b, "- %s\n", q.Title)
		if verbose && q.Content != "" {
			fmt.Fprintf(b, "  Context: %s\n", truncate(q.Content, 200))
		}
	}
}

func (e *Engine) appendDecisions(b *strings.Builder, limit int, verbose bool) {
	decisions, err := e.DB.ListNodes(store.NodeFilter{Type: "decision", Status: "active", Limit: limit})
	if err != nil {
		slog.Warn("list decisions", "err", err)
		return
	}
	if len(decisions) == 0 {
		return
	}
	b.WriteString("\n### Recent decisions\n")
	for _, d := range decisions {
		fmt.Fprintf(b, "- %s\n", d.Title)
		if verbose && d.Content != "" {
			fmt.Fprintf(b, "  Rationale: %s\n", truncate(d.Content, 200))
		}
	}
}

// appendOperational renders active constraints and watches; checkpoints
// and directives only at the verbose (full) tier.
func (e *Engine) appendOperational(b *strings.Builder, verbose bool) {
	limit := 3
	if verbose {
		limit = 5
	}

	constraints, err := e.DB.ListNodes(store.NodeFilter{Type: "constraint", Status: "active", Limit: limit})
	if err == nil && len(constraints) > 0 {
		b.WriteString("\n### Active constraints\n")
		for _, c := range constraints {
			action := "warn"
			if a, ok := c.Extra["action"].(string); ok && a != "" {
				action = a
			}
			fmt.Fprintf(b, "- [%s] %s\n", action, c.Title)
		}
	}

	watches, err := e.DB.ListNodes(store.NodeFilter{Type: "watch", Status: "active", Limit: limit})
	if err == nil && len(watches) > 0 {
		b.WriteString("\n### Watches\n")
		for _, w := range watches {
			line := "- ! " + w.Title
			if owner, ok := w.Extra["owner"].(string); ok && owner != "" {
				line += " @" + owner
			}
			b.WriteString(line + "\n")
		}
	}

	if !verbose {
		return
	}

	checkpoints, err := e.DB.ListNodes(store.NodeFilter{Type: "checkpoint", Status: "active", Limit: limit})
	if err == nil && len(checkpoints) > 0 {
		b.WriteString("\n### Checkpoints\n")
		for _, cp := range checkpoints {
			fmt.Fprintf(b, "- [ ] %s\n", cp.Title)
		}
	}

	directives, err := e.DB.ListNodes(store.NodeFilter{Type: "directive", Status: "active", Limit: limit})
	if err == nil && len(directives) > 0 {
		b.WriteString("\n### Directives\n")
		for _, d := range directives {
			fmt.Fprintf(b, "- %s\n", d.Title)
		}
	}
}
