package matchmaking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/skillswap/credit-engine/skill"
)

// candidatePoolLimit bounds how many skills a single matchmaking query
// scores, keeping cost independent of catalog size.
const candidatePoolLimit = 500

// Match is a candidate skill with its score.
type Match struct {
	Skill skill.Skill
	Score float64
}

// Service computes skill recommendations over the skill store.
type Service struct {
	Skills skill.Store
}

func NewService(skills skill.Store) *Service {
	return &Service{Skills: skills}
}

// FindComplementarySkills ranks skills related to the reference skill by
// tag overlap. Skills owned by the reference skill's owner are excluded.
// Results with a score below minScore are dropped; the rest are ordered by
// descending score (stable ties) and truncated to limit.
func (s *Service) FindComplementarySkills(ctx context.Context, skillID string, limit int, minScore float64) ([]Match, error) {
	ref, err := s.Skills.GetSkill(ctx, skillID)
	if err != nil {
		return nil, fmt.Errorf("load skill: %w", err)
	}
	if ref == nil {
		return nil, skill.ErrNotFound
	}

	candidates, err := s.Skills.SkillsExcludingOwner(ctx, ref.OwnerID, candidatePoolLimit)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score := TagOverlapScore(ref.Tags, c.Tags)
		if score >= minScore {
			matches = append(matches, Match{Skill: c, Score: score})
		}
	}

	sortByScore(matches)
	return truncate(matches, limit), nil
}

// SearchSkillsByQuery finds skills whose title contains query
// case-insensitively. Each candidate scores its tag count, plus 2 when its
// description also contains the query; results are ordered by descending
// score with stable ties and truncated to limit.
func (s *Service) SearchSkillsByQuery(ctx context.Context, query string, limit int) ([]Match, error) {
	candidates, err := s.Skills.SearchSkillsByTitle(ctx, query, candidatePoolLimit)
	if err != nil {
		return nil, fmt.Errorf("search skills: %w", err)
	}

	lowered := strings.ToLower(query)
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score := float64(len(NormalizeTags(c.Tags)))
		if strings.Contains(strings.ToLower(c.Description), lowered) {
			score += 2
		}
		matches = append(matches, Match{Skill: c, Score: score})
	}

	sortByScore(matches)
	return truncate(matches, limit), nil
}

func sortByScore(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}

func truncate(matches []Match, limit int) []Match {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}
