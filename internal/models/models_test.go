package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatusForScore(t *testing.T) {
	tests := []struct {
		score    int
		expected Status
	}{
		{score: 100, expected: StatusShortlisted},
		{score: 85, expected: StatusShortlisted},
		{score: 84, expected: StatusReviewed},
		{score: 70, expected: StatusReviewed},
		{score: 69, expected: StatusPending},
		{score: 0, expected: StatusPending},
	}

	for _, tt := range tests {
		if got := StatusForScore(tt.score); got != tt.expected {
			t.Errorf("StatusForScore(%d) = %s, want %s", tt.score, got, tt.expected)
		}
	}
}

func TestCandidateCloneIsIndependent(t *testing.T) {
	original := Candidate{
		ID:     "c1",
		Skills: []Skill{{Name: "Go", Category: SkillTechnical, Confidence: 0.9}},
		Notes:  []string{"first call"},
	}

	clone := original.Clone()
	clone.Skills[0].Name = "Rust"
	clone.Notes[0] = "changed"

	if original.Skills[0].Name != "Go" {
		t.Errorf("Expected original skill to stay Go, got %s", original.Skills[0].Name)
	}
	if original.Notes[0] != "first call" {
		t.Errorf("Expected original note to stay unchanged, got %s", original.Notes[0])
	}
}

func TestMergeSkills(t *testing.T) {
	skills := []Skill{
		{Name: "Go", Category: SkillTechnical, Confidence: 0.7},
		{Name: "Leadership", Category: SkillSoft, Confidence: 0.8},
		{Name: "Go", Category: SkillTechnical, Confidence: 0.95},
		{Name: "Go", Category: SkillSoft, Confidence: 0.5},
	}

	merged := MergeSkills(skills)
	if len(merged) != 3 {
		t.Fatalf("Expected 3 skills after merge, got %d", len(merged))
	}
	if merged[0].Name != "Go" || merged[0].Confidence != 0.95 {
		t.Errorf("Expected first skill Go with confidence 0.95, got %+v", merged[0])
	}
	if merged[2].Category != SkillSoft {
		t.Errorf("Expected the soft Go skill to be kept separately, got %+v", merged[2])
	}
}

func TestScoringWeightsSerialization(t *testing.T) {
	weights := DefaultScoringWeights()

	data, err := json.Marshal(weights)
	if err != nil {
		t.Fatalf("Failed to marshal ScoringWeights: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal ScoringWeights: %v", err)
	}

	for _, key := range []string{"minScoreThreshold", "skillsWeight", "experienceWeight", "educationWeight", "autoShortlist", "processingMode"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected key %s in serialized weights", key)
		}
	}

	if weights.WeightSum() != 100 {
		t.Errorf("Expected default weights to sum to 100, got %d", weights.WeightSum())
	}
}

func TestCandidateSerializationKeepsProcessedAt(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := Candidate{ID: "c1", Name: "Ada Lovelace", Score: 90, ProcessedAt: at, Status: StatusShortlisted}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Failed to marshal Candidate: %v", err)
	}

	var decoded Candidate
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal Candidate: %v", err)
	}

	if !decoded.ProcessedAt.Equal(at) {
		t.Errorf("Expected processedAt %v, got %v", at, decoded.ProcessedAt)
	}
}
