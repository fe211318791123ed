package corpus

import (
	"sort"

	"github.com/mediascope/researcher/internal/domain"
)

// DefaultFusionSmoothing is the reciprocal rank fusion smoothing constant.
// It keeps rank-1 items from dominating the fused list disproportionately.
const DefaultFusionSmoothing = 60

// FuseRanked merges two independently ranked result lists for the same
// query into one list using reciprocal rank fusion: an item at zero-based
// rank i contributes 1/(smoothing+i) per list, contributions are summed per
// item, and items are ordered by descending total. Ties keep first-seen
// order across (primary, then secondary), so the output is deterministic
// for the same two inputs.
func FuseRanked(primary, secondary []domain.ArticleRecord, smoothing int) []domain.ArticleRecord {
	if smoothing <= 0 {
		smoothing = DefaultFusionSmoothing
	}

	scores := make(map[int64]float64, len(primary)+len(secondary))
	records := make(map[int64]domain.ArticleRecord, len(primary)+len(secondary))
	order := make([]int64, 0, len(primary)+len(secondary))

	accumulate := func(list []domain.ArticleRecord) {
		for rank, record := range list {
			if _, seen := scores[record.ID]; !seen {
				order = append(order, record.ID)
				records[record.ID] = record
			}
			scores[record.ID] += 1.0 / float64(smoothing+rank)
		}
	}
	accumulate(primary)
	accumulate(secondary)

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	fused := make([]domain.ArticleRecord, 0, len(order))
	for _, id := range order {
		fused = append(fused, records[id])
	}
	return fused
}
