package analytics

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/candidate-screener/internal/models"
)

func withSkills(score int, skills ...models.Skill) models.Candidate {
	return models.Candidate{Score: score, Skills: skills}
}

func tech(name string, conf float64) models.Skill {
	return models.Skill{Name: name, Category: models.SkillTechnical, Confidence: conf}
}

func soft(name string, conf float64) models.Skill {
	return models.Skill{Name: name, Category: models.SkillSoft, Confidence: conf}
}

func TestScoreDistribution(t *testing.T) {
	tests := []struct {
		name     string
		scores   []int
		expected Distribution
	}{
		{name: "empty", scores: nil, expected: Distribution{}},
		{name: "boundaries", scores: []int{85, 84, 70, 69}, expected: Distribution{High: 1, Medium: 2, Low: 1}},
		{name: "extremes", scores: []int{0, 100, 100}, expected: Distribution{High: 2, Low: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cs []models.Candidate
			for _, s := range tt.scores {
				cs = append(cs, withSkills(s))
			}
			got := ScoreDistribution(cs)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, len(cs), got.Total())
		})
	}
}

func TestScoreDistribution_SumsToSize(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for n := 0; n < 50; n++ {
		cs := make([]models.Candidate, n)
		for i := range cs {
			cs[i].Score = r.IntN(101)
		}
		assert.Equal(t, n, ScoreDistribution(cs).Total())
	}
}

func TestSkillFrequency(t *testing.T) {
	cs := []models.Candidate{
		withSkills(90, tech("React", 0.8), soft("Leadership", 0.9)),
		withSkills(80, tech("Python", 0.7), tech("React", 1.0)),
		withSkills(70, tech("Python", 0.9), soft("React", 0.6)),
		withSkills(60, tech("SQL", 0.75)),
	}

	got := SkillFrequency(cs, 0)
	require.Len(t, got, 4)

	assert.Equal(t, "React", got[0].Name)
	assert.Equal(t, 3, got[0].Count, "counted across categories")
	assert.InDelta(t, 0.8, got[0].AvgConfidence, 1e-9)
	assert.InDelta(t, 75.0, got[0].Percentage, 1e-9)

	assert.Equal(t, "Python", got[1].Name)
	// Leadership and SQL tie on count; Leadership was seen first
	assert.Equal(t, "Leadership", got[2].Name)
	assert.Equal(t, "SQL", got[3].Name)

	top := SkillFrequency(cs, 2)
	require.Len(t, top, 2)
	assert.Equal(t, []string{"React", "Python"}, []string{top[0].Name, top[1].Name})
}

func TestSkillFrequency_Bounds(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	names := []string{"Go", "SQL", "AWS", "Docker", "Git"}

	cs := make([]models.Candidate, 30)
	for i := range cs {
		for _, n := range names {
			if r.IntN(2) == 0 {
				cs[i].Skills = append(cs[i].Skills, tech(n, r.Float64()))
			}
			if r.IntN(2) == 0 {
				cs[i].Skills = append(cs[i].Skills, soft(n, r.Float64()))
			}
		}
	}

	for _, stat := range SkillFrequency(cs, 10) {
		assert.LessOrEqual(t, stat.Count, len(cs))
		assert.GreaterOrEqual(t, stat.Percentage, 0.0)
		assert.LessOrEqual(t, stat.Percentage, 100.0)
	}
}

func TestSkillFrequency_SameNameInBothCategories(t *testing.T) {
	cs := []models.Candidate{
		withSkills(80, tech("Communication", 0.8), soft("Communication", 0.9)),
	}

	got := SkillFrequency(cs, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Count)
	assert.InDelta(t, 100.0, got[0].Percentage, 1e-9)
	assert.InDelta(t, 0.9, got[0].AvgConfidence, 1e-9, "higher confidence of the two is kept")
}

func TestSkillFrequency_Empty(t *testing.T) {
	assert.Empty(t, SkillFrequency(nil, 5))
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	cs := []models.Candidate{
		{Score: 90, ProcessedAt: now.Add(-time.Hour), Skills: []models.Skill{tech("Go", 0.9)}},
		{Score: 70, ProcessedAt: now.Add(-48 * time.Hour), Skills: []models.Skill{tech("Go", 0.8), tech("SQL", 0.7)}},
		{Score: 50, ProcessedAt: now.Add(-2 * time.Hour)},
	}

	s := Summarize(cs, now)
	assert.Equal(t, 3, s.TotalProcessed)
	assert.Equal(t, 2, s.ProcessedToday)
	assert.InDelta(t, 70.0, s.AverageScore, 1e-9)
	assert.Equal(t, 1, s.HighPerformers)
	assert.InDelta(t, 100.0/3, s.HighPerformerShare, 1e-9)
	assert.Equal(t, 90, s.HighestScore)
	assert.Equal(t, 50, s.LowestScore)
	assert.Equal(t, []string{"Go", "SQL"}, s.TopSkills)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, time.Now())
	assert.Equal(t, 0, s.TotalProcessed)
	assert.Zero(t, s.AverageScore)
	assert.NotNil(t, s.TopSkills)
}
