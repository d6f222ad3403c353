package models

import (
	"io"
	"time"
)

// Score thresholds shared by status derivation, query bands and analytics.
const (
	HighScoreThreshold   = 85
	MediumScoreThreshold = 70
	MinScore             = 0
	MaxScore             = 100
)

// Status is the cached classification of a candidate's score
type Status string

const (
	StatusShortlisted Status = "shortlisted"
	StatusReviewed    Status = "reviewed"
	StatusPending     Status = "pending"
)

// StatusForScore maps a score onto its status
func StatusForScore(score int) Status {
	switch {
	case score >= HighScoreThreshold:
		return StatusShortlisted
	case score >= MediumScoreThreshold:
		return StatusReviewed
	default:
		return StatusPending
	}
}

// SkillCategory partitions skills into technical and soft
type SkillCategory string

const (
	SkillTechnical SkillCategory = "technical"
	SkillSoft      SkillCategory = "soft"
)

// Skill is one extracted skill with the analyser's confidence in it
type Skill struct {
	Name       string        `json:"name"`
	Category   SkillCategory `json:"category"`
	Confidence float64       `json:"confidence"` // 0-1
}

// Candidate represents the analysis result for one resume
type Candidate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Score       int       `json:"score"` // 0-100
	Skills      []Skill   `json:"skills"`
	File        string    `json:"file"`
	ProcessedAt time.Time `json:"processedAt"`
	Status      Status    `json:"status"`
	Notes       []string  `json:"notes"`
}

// Clone returns a deep copy so callers never share slices with the owner
func (c Candidate) Clone() Candidate {
	out := c
	if c.Skills != nil {
		out.Skills = make([]Skill, len(c.Skills))
		copy(out.Skills, c.Skills)
	}
	if c.Notes != nil {
		out.Notes = make([]string, len(c.Notes))
		copy(out.Notes, c.Notes)
	}
	return out
}

// MergeSkills drops repeated names within a category, keeping the first
// position and the highest confidence seen for it.
func MergeSkills(skills []Skill) []Skill {
	type key struct {
		name     string
		category SkillCategory
	}

	merged := make([]Skill, 0, len(skills))
	index := make(map[key]int, len(skills))
	for _, s := range skills {
		k := key{name: s.Name, category: s.Category}
		if i, ok := index[k]; ok {
			if s.Confidence > merged[i].Confidence {
				merged[i].Confidence = s.Confidence
			}
			continue
		}
		index[k] = len(merged)
		merged = append(merged, s)
	}
	return merged
}

// ProcessingMode selects how much analysis effort a batch receives
type ProcessingMode string

const (
	ProcessingFast     ProcessingMode = "fast"
	ProcessingBalanced ProcessingMode = "balanced"
	ProcessingThorough ProcessingMode = "thorough"
)

// ScoringWeights configures how a candidate score should be composed
type ScoringWeights struct {
	MinScoreThreshold  int            `json:"minScoreThreshold" validate:"min=50,max=95"`
	SkillsWeight       int            `json:"skillsWeight" validate:"min=20,max=80"`
	ExperienceWeight   int            `json:"experienceWeight" validate:"min=10,max=70"`
	EducationWeight    int            `json:"educationWeight" validate:"min=5,max=50"`
	AutoShortlist      bool           `json:"autoShortlist"`
	EmailNotifications bool           `json:"emailNotifications"`
	ProcessingMode     ProcessingMode `json:"processingMode" validate:"oneof=fast balanced thorough"`
}

// DefaultScoringWeights returns the factory configuration
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		MinScoreThreshold:  70,
		SkillsWeight:       50,
		ExperienceWeight:   30,
		EducationWeight:    20,
		AutoShortlist:      true,
		EmailNotifications: true,
		ProcessingMode:     ProcessingBalanced,
	}
}

// WeightSum is the total of the three composable weights
func (w ScoringWeights) WeightSum() int {
	return w.SkillsWeight + w.ExperienceWeight + w.EducationWeight
}

// NotificationType classifies a notification for display
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// Notification is a transient user-facing status message
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"createdAt"`
}

// FileHandle is an uploaded resume that can be read on demand
type FileHandle struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}
