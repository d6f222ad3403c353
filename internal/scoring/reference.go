package scoring

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/fmuoria/candidate-screener/internal/models"
)

var (
	technicalPool = []string{"JavaScript", "React", "Python", "Node.js", "TypeScript", "SQL", "AWS", "Docker", "Git", "MongoDB"}
	softPool      = []string{"Leadership", "Communication", "Problem Solving", "Teamwork", "Project Management"}
)

// ReferenceScorer produces plausible candidates from a seeded random source.
// The same seed and call order always yield the same candidates.
type ReferenceScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewReferenceScorer creates a scorer seeded with seed
func NewReferenceScorer(seed uint64) *ReferenceScorer {
	return &ReferenceScorer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Score draws 30% of scores from [85,99], 40% from [70,84] and 30% from
// [60,69], with 3-5 technical and 1-2 soft skills.
func (s *ReferenceScorer) Score(ctx context.Context, file models.FileHandle, _ models.ScoringWeights) (models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return models.Candidate{}, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	score := s.drawScore()
	skills := s.drawSkills(technicalPool, models.SkillTechnical, 3+s.rng.IntN(3), 0.7)
	skills = append(skills, s.drawSkills(softPool, models.SkillSoft, 1+s.rng.IntN(2), 0.8)...)

	name := DeriveName(file.Name)
	return models.Candidate{
		Name:   name,
		Email:  emailFor(name),
		Phone:  fmt.Sprintf("+234 %03d %04d", s.rng.IntN(1000), s.rng.IntN(10000)),
		Score:  score,
		Skills: skills,
		File:   file.Name,
		Status: models.StatusForScore(score),
		Notes:  []string{},
	}, nil
}

func (s *ReferenceScorer) drawScore() int {
	switch roll := s.rng.Float64(); {
	case roll < 0.3:
		return 85 + s.rng.IntN(15)
	case roll < 0.7:
		return 70 + s.rng.IntN(15)
	default:
		return 60 + s.rng.IntN(10)
	}
}

func (s *ReferenceScorer) drawSkills(pool []string, category models.SkillCategory, n int, minConfidence float64) []models.Skill {
	perm := s.rng.Perm(len(pool))
	skills := make([]models.Skill, 0, n)
	for _, idx := range perm[:n] {
		conf := minConfidence + s.rng.Float64()*(1-minConfidence)
		skills = append(skills, models.Skill{
			Name:       pool[idx],
			Category:   category,
			Confidence: math.Round(conf*100) / 100,
		})
	}
	return skills
}
