package render

import (
	"sort"

	"vidsite/storage"
)

// Related picks up to k cross-reference candidates for current, scored by
// shared tags, shared category, and a recency/popularity bonus. Tag overlap
// dominates; the exact coefficients are tuning, not contract, only the
// relative ordering matters to callers.
func Related(all []storage.MetadataRecord, current storage.MetadataRecord, k int) []storage.MetadataRecord {
	if k <= 0 {
		return nil
	}

	curTags := make(map[string]bool, len(current.Tags))
	for _, t := range current.Tags {
		curTags[t] = true
	}

	type scored struct {
		rec   storage.MetadataRecord
		score float64
	}
	candidates := make([]scored, 0, len(all))
	for _, r := range all {
		if r.ID == current.ID {
			continue
		}
		s := 0.0
		for _, t := range r.Tags {
			if curTags[t] {
				s += 3
			}
		}
		if current.Category != "" && r.Category == current.Category {
			s += 2
		}
		if r.LastEditedAt != "" || r.PublishedAt != "" {
			s += 0.1
		}
		if bonus := float64(r.ViewCount) / 1e6; bonus < 1.0 {
			s += bonus
		} else {
			s += 1.0
		}
		candidates = append(candidates, scored{rec: r, score: s})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]storage.MetadataRecord, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out
}
