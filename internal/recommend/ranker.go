package recommend

import "sort"

const (
	DefaultLimit       = 5
	DefaultHybridLimit = 6
)

// Rank orders scored candidates by score, highest first, and keeps the first
// limit game ids. Equal scores keep their input order, which for the output
// of Score is the catalog order.
func Rank(scored []Scored, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	sorted := append([]Scored(nil), scored...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	ids := make([]string, 0, min(limit, len(sorted)))
	seen := make(map[string]struct{}, len(sorted))
	for _, s := range sorted {
		if len(ids) == limit {
			break
		}
		if _, ok := seen[s.GameID]; ok {
			continue
		}
		seen[s.GameID] = struct{}{}
		ids = append(ids, s.GameID)
	}

	return ids
}
