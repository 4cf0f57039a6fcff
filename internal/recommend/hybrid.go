package recommend

import (
	"sort"

	"github.com/victornm/gamerank/internal/domain"
)

// Candidates are the independently generated lists merged by Hybrid.
type Candidates struct {
	Content       []string
	Category      []string
	Collaborative []string
	// Played games are never returned.
	Played []string
}

// Hybrid merges candidate lists in priority order (content, category,
// collaborative), dropping played games and duplicates before keeping the
// first limit ids. There is no scoring involved: the first occurrence wins.
func Hybrid(c Candidates, limit int) []string {
	if limit <= 0 {
		limit = DefaultHybridLimit
	}

	skip := make(map[string]struct{}, len(c.Played))
	for _, id := range c.Played {
		skip[id] = struct{}{}
	}

	var out []string
	for _, list := range [][]string{c.Content, c.Category, c.Collaborative} {
		for _, id := range list {
			if len(out) == limit {
				return out
			}
			if _, ok := skip[id]; ok {
				continue
			}
			skip[id] = struct{}{}
			out = append(out, id)
		}
	}

	return out
}

// ContentCandidates returns up to n games adjacent to gameID.
func ContentCandidates(c *domain.Catalog, gameID string, n int) []string {
	g, ok := c.Get(gameID)
	if !ok {
		return nil
	}

	var out []string
	for _, id := range g.Adjacent {
		if len(out) == n {
			break
		}
		if c.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// CategoryCandidates returns up to n games of category that are not excluded.
func CategoryCandidates(c *domain.Catalog, category string, exclude []string, n int) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var out []string
	for _, id := range c.InCategory(category) {
		if len(out) == n {
			break
		}
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// CollaborativeCandidates counts how often each game is adjacent to one of
// the played games and returns the n most frequent ones that were not played.
// Equal frequencies keep the order in which the games were first seen.
func CollaborativeCandidates(c *domain.Catalog, played []string, n int) []string {
	if len(played) == 0 {
		return nil
	}

	skip := make(map[string]struct{}, len(played))
	for _, id := range played {
		skip[id] = struct{}{}
	}

	var order []string
	freq := make(map[string]int)
	for _, p := range played {
		g, ok := c.Get(p)
		if !ok {
			continue
		}
		for _, id := range g.Adjacent {
			if _, ok := skip[id]; ok || !c.Has(id) {
				continue
			}
			if freq[id] == 0 {
				order = append(order, id)
			}
			freq[id]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}
