// Package analytics computes rollups over candidate snapshots. Every
// function is pure and recomputes from its input.
package analytics

import (
	"cmp"
	"slices"
	"time"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// DefaultTopSkills is the SkillFrequency limit used when none is given
const DefaultTopSkills = 10

// summaryTopSkills is how many skill names a Summary carries
const summaryTopSkills = 5

// Distribution counts candidates per score band
type Distribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total is the number of candidates counted
func (d Distribution) Total() int {
	return d.High + d.Medium + d.Low
}

// SkillStat aggregates one skill name across candidates
type SkillStat struct {
	Name          string  `json:"name"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avgConfidence"`
	Percentage    float64 `json:"percentage"`
}

// Summary is the dashboard view of the candidate set
type Summary struct {
	TotalProcessed     int          `json:"totalProcessed"`
	ProcessedToday     int          `json:"processedToday"`
	AverageScore       float64      `json:"averageScore"`
	HighPerformers     int          `json:"highPerformers"`
	HighPerformerShare float64      `json:"highPerformerPercentage"`
	HighestScore       int          `json:"highestScore"`
	LowestScore        int          `json:"lowestScore"`
	Distribution       Distribution `json:"distribution"`
	TopSkills          []string     `json:"topSkills"`
}

// ScoreDistribution buckets candidates with the status thresholds
func ScoreDistribution(candidates []models.Candidate) Distribution {
	var d Distribution
	for _, c := range candidates {
		switch {
		case c.Score >= models.HighScoreThreshold:
			d.High++
		case c.Score >= models.MediumScoreThreshold:
			d.Medium++
		default:
			d.Low++
		}
	}
	return d
}

// SkillFrequency counts the candidates listing each skill name, regardless
// of category. Results are ordered by count descending, ties by first
// appearance, and truncated to topN (DefaultTopSkills when topN <= 0).
func SkillFrequency(candidates []models.Candidate, topN int) []SkillStat {
	if topN <= 0 {
		topN = DefaultTopSkills
	}

	type acc struct {
		count int
		sum   float64
	}
	var order []string
	byName := make(map[string]*acc)
	for _, c := range candidates {
		// a name listed in both categories counts once, at its higher confidence
		best := make(map[string]float64, len(c.Skills))
		var names []string
		for _, s := range c.Skills {
			conf, ok := best[s.Name]
			if !ok {
				names = append(names, s.Name)
				best[s.Name] = s.Confidence
				continue
			}
			best[s.Name] = max(conf, s.Confidence)
		}

		for _, name := range names {
			a, ok := byName[name]
			if !ok {
				a = &acc{}
				byName[name] = a
				order = append(order, name)
			}
			a.count++
			a.sum += best[name]
		}
	}

	total := len(candidates)
	stats := make([]SkillStat, 0, len(order))
	for _, name := range order {
		a := byName[name]
		stat := SkillStat{
			Name:          name,
			Count:         a.count,
			AvgConfidence: a.sum / float64(a.count),
		}
		if total > 0 {
			stat.Percentage = float64(a.count) / float64(total) * 100
		}
		stats = append(stats, stat)
	}

	slices.SortStableFunc(stats, func(a, b SkillStat) int {
		return cmp.Compare(b.Count, a.Count)
	})

	if len(stats) > topN {
		stats = stats[:topN]
	}
	return stats
}

// Summarize builds the dashboard metrics. "Today" is the calendar day of now
// in now's location.
func Summarize(candidates []models.Candidate, now time.Time) Summary {
	s := Summary{
		TotalProcessed: len(candidates),
		Distribution:   ScoreDistribution(candidates),
		TopSkills:      []string{},
	}
	if len(candidates) == 0 {
		return s
	}

	y, m, d := now.Date()
	total := 0
	s.HighestScore = candidates[0].Score
	s.LowestScore = candidates[0].Score
	for _, c := range candidates {
		total += c.Score
		s.HighestScore = max(s.HighestScore, c.Score)
		s.LowestScore = min(s.LowestScore, c.Score)

		cy, cm, cd := c.ProcessedAt.In(now.Location()).Date()
		if cy == y && cm == m && cd == d {
			s.ProcessedToday++
		}
	}

	s.AverageScore = float64(total) / float64(len(candidates))
	s.HighPerformers = s.Distribution.High
	s.HighPerformerShare = float64(s.HighPerformers) / float64(len(candidates)) * 100

	for _, stat := range SkillFrequency(candidates, summaryTopSkills) {
		s.TopSkills = append(s.TopSkills, stat.Name)
	}
	return s
}
