/*
Package matchmaking ranks skills by similarity. Read-only: nothing here
mutates state.

TAG OVERLAP SCORE:
  Tags are treated as binary presence vectors and compared with a cosine-
  like measure:

      score = |A ∩ B| / sqrt(|A| * |B|)

  after case-insensitive normalization. The score is symmetric, lands in
  [0,1], is 0 when either set is empty, and is 1 when both sets are equal
  and non-empty.
*/
package matchmaking

import (
	"math"
	"strings"
)

// NormalizeTags lowercases, trims, and deduplicates a tag list, dropping
// empties. Matching is always performed over the normalized set.
func NormalizeTags(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// TagOverlapScore computes the tag similarity of two skills in [0,1].
func TagOverlapScore(tagsA, tagsB []string) float64 {
	a := NormalizeTags(tagsA)
	b := NormalizeTags(tagsB)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	return float64(intersection) / math.Sqrt(float64(len(a))*float64(len(b)))
}
