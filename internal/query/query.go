// Package query filters and orders candidate snapshots for display.
package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// Band restricts results to a score range
type Band string

const (
	BandAll    Band = "all"
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// SortKey selects the result ordering
type SortKey string

const (
	SortScore SortKey = "score"
	SortName  SortKey = "name"
	SortDate  SortKey = "date"
)

// Query is a search term, score band and sort key
type Query struct {
	SearchTerm string  `json:"search"`
	Band       Band    `json:"band"`
	Sort       SortKey `json:"sort"`
}

// ParseBand accepts a band name; empty means all
func ParseBand(s string) (Band, error) {
	switch b := Band(strings.ToLower(strings.TrimSpace(s))); b {
	case "", BandAll:
		return BandAll, nil
	case BandHigh, BandMedium, BandLow:
		return b, nil
	default:
		return "", fmt.Errorf("unknown score band %q", s)
	}
}

// ParseSortKey accepts a sort key name; empty means score
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "", SortScore:
		return SortScore, nil
	case SortName, SortDate:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Apply returns the candidates matching q in q's order. The input slice is
// never modified.
func Apply(candidates []models.Candidate, q Query) []models.Candidate {
	term := strings.ToLower(strings.TrimSpace(q.SearchTerm))

	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !inBand(c.Score, q.Band) || !matches(c, term) {
			continue
		}
		out = append(out, c)
	}

	switch q.Sort {
	case SortName:
		slices.SortStableFunc(out, func(a, b models.Candidate) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case SortDate:
		slices.SortStableFunc(out, func(a, b models.Candidate) int {
			return b.ProcessedAt.Compare(a.ProcessedAt)
		})
	default:
		slices.SortStableFunc(out, func(a, b models.Candidate) int {
			return cmp.Compare(b.Score, a.Score)
		})
	}
	return out
}

func inBand(score int, band Band) bool {
	switch band {
	case BandHigh:
		return score >= models.HighScoreThreshold
	case BandMedium:
		return score >= models.MediumScoreThreshold && score < models.HighScoreThreshold
	case BandLow:
		return score < models.MediumScoreThreshold
	default:
		return true
	}
}

func matches(c models.Candidate, term string) bool {
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Name), term) {
		return true
	}
	for _, s := range c.Skills {
		if strings.Contains(strings.ToLower(s.Name), term) {
			return true
		}
	}
	return false
}
