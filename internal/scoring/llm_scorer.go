package scoring

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/ingestion"
	"github.com/fmuoria/candidate-screener/internal/llm"
	"github.com/fmuoria/candidate-screener/internal/logger"
	"github.com/fmuoria/candidate-screener/internal/models"
)

const (
	maxRetries     = 3
	retryBackoff   = 10 * time.Second
	maxResumeChars = 8000
)

//go:embed schema/analysis.schema.json
var analysisSchema string

var analysisSchemaLoader = gojsonschema.NewStringLoader(analysisSchema)

// Extractor pulls plain text out of a resume file
type Extractor func(ctx context.Context, f models.FileHandle) (string, error)

// analysis is the contract the model must answer with
type analysis struct {
	Name   string          `mapstructure:"name"`
	Email  string          `mapstructure:"email"`
	Phone  string          `mapstructure:"phone"`
	Score  float64         `mapstructure:"score"`
	Skills []analysisSkill `mapstructure:"skills"`
}

type analysisSkill struct {
	Name       string  `mapstructure:"name"`
	Category   string  `mapstructure:"category"`
	Confidence float64 `mapstructure:"confidence"`
}

// LLMScorer scores resumes by asking a language model
type LLMScorer struct {
	generator llm.Generator
	extract   Extractor
	logger    *zap.Logger
	backoff   time.Duration
}

// LLMOption configures an LLMScorer
type LLMOption func(*LLMScorer)

// WithExtractor replaces the document text extractor
func WithExtractor(e Extractor) LLMOption {
	return func(s *LLMScorer) { s.extract = e }
}

// WithRetryBackoff sets the base wait between rate-limited attempts
func WithRetryBackoff(d time.Duration) LLMOption {
	return func(s *LLMScorer) { s.backoff = d }
}

// NewLLMScorer creates a scorer backed by generator
func NewLLMScorer(generator llm.Generator, log *zap.Logger, opts ...LLMOption) *LLMScorer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &LLMScorer{
		generator: generator,
		extract:   ingestion.ExtractText,
		logger:    log,
		backoff:   retryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score extracts the resume text, asks the model for an analysis and
// normalizes the answer into a candidate.
func (s *LLMScorer) Score(ctx context.Context, file models.FileHandle, weights models.ScoringWeights) (models.Candidate, error) {
	text, err := s.extract(ctx, file)
	if err != nil {
		return models.Candidate{}, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}

	prompt := buildScoringPrompt(file.Name, text, weights)

	response, err := s.generate(ctx, prompt)
	if err != nil {
		return models.Candidate{}, fmt.Errorf("%w: failed to get LLM response: %w", ErrScoringUnavailable, err)
	}

	result, err := parseAnalysis(response)
	if err != nil {
		s.logger.Debug("unusable model response",
			zap.String("file", file.Name),
			zap.String("response", logger.Truncate(response, 200)))
		return models.Candidate{}, fmt.Errorf("%w: failed to parse analysis: %w", ErrScoringUnavailable, err)
	}

	candidate, err := toCandidate(result, file.Name)
	if err != nil {
		return models.Candidate{}, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}
	return candidate, nil
}

func (s *LLMScorer) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := s.backoff * time.Duration(attempt)
			s.logger.Info("rate limited, retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		response, err := s.generator.GenerateContent(ctx, prompt)
		if err == nil {
			return response, nil
		}
		if !llm.IsRateLimitError(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// buildScoringPrompt creates the analysis prompt for one resume
func buildScoringPrompt(filename, resume string, w models.ScoringWeights) string {
	var sb strings.Builder

	sb.WriteString("You are an expert technical recruiter screening a candidate resume. Analyze the resume below and score the candidate.\n\n")

	sb.WriteString("## SCORING WEIGHTS\n")
	sb.WriteString(fmt.Sprintf("- Skills: %d%%\n", w.SkillsWeight))
	sb.WriteString(fmt.Sprintf("- Experience: %d%%\n", w.ExperienceWeight))
	sb.WriteString(fmt.Sprintf("- Education: %d%%\n", w.EducationWeight))
	sb.WriteString(fmt.Sprintf("Candidates scoring below %d are not considered a match.\n\n", w.MinScoreThreshold))

	sb.WriteString("## ANALYSIS DEPTH\n")
	switch w.ProcessingMode {
	case models.ProcessingFast:
		sb.WriteString("Give a quick assessment based on the most prominent skills and roles.\n\n")
	case models.ProcessingThorough:
		sb.WriteString("Analyze every section in depth, including projects, certifications and career progression.\n\n")
	default:
		sb.WriteString("Balance speed and depth: cover skills, recent roles and education.\n\n")
	}

	sb.WriteString("## RESUME\n")
	sb.WriteString(fmt.Sprintf("File: %s\n\n", filename))
	resume = ingestion.SanitizeUTF8(resume)
	if runes := []rune(resume); len(runes) > maxResumeChars {
		sb.WriteString(string(runes[:maxResumeChars]))
		sb.WriteString("\n[Resume truncated for length]")
	} else {
		sb.WriteString(resume)
	}
	sb.WriteString("\n\n")

	sb.WriteString("## RESPONSE FORMAT\n")
	sb.WriteString("Provide your evaluation in the following JSON format:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "name": "<candidate full name, or empty if not found>",` + "\n")
	sb.WriteString(`  "email": "<email address, or empty>",` + "\n")
	sb.WriteString(`  "phone": "<phone number, or empty>",` + "\n")
	sb.WriteString(`  "score": <0-100 weighted overall score>,` + "\n")
	sb.WriteString(`  "skills": [{"name": "<skill>", "category": "technical|soft", "confidence": <0-1>}]` + "\n")
	sb.WriteString("}\n\n")
	sb.WriteString("List each skill once. Return ONLY the JSON object, no additional text.\n")

	return sb.String()
}

// parseAnalysis locates, validates and decodes the model's JSON answer
func parseAnalysis(response string) (analysis, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx < startIdx {
		return analysis{}, errors.New("no JSON found in response")
	}
	jsonStr := response[startIdx : endIdx+1]

	result, err := gojsonschema.Validate(analysisSchemaLoader, gojsonschema.NewStringLoader(jsonStr))
	if err != nil {
		return analysis{}, fmt.Errorf("failed to load response: %w", err)
	}
	if !result.Valid() {
		fields := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			fields = append(fields, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return analysis{}, fmt.Errorf("response does not match schema: %s", strings.Join(fields, "; "))
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return analysis{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var out analysis
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return analysis{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return analysis{}, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return out, nil
}

// toCandidate clamps the analysis into the data model. It fails when no
// named skill is left.
func toCandidate(a analysis, filename string) (models.Candidate, error) {
	score := int(math.Round(math.Max(models.MinScore, math.Min(models.MaxScore, a.Score))))

	skills := make([]models.Skill, 0, len(a.Skills))
	for _, sk := range a.Skills {
		name := strings.TrimSpace(sk.Name)
		if name == "" {
			continue
		}
		category := models.SkillTechnical
		if strings.EqualFold(strings.TrimSpace(sk.Category), string(models.SkillSoft)) {
			category = models.SkillSoft
		}
		skills = append(skills, models.Skill{
			Name:       name,
			Category:   category,
			Confidence: max(0, min(1, sk.Confidence)),
		})
	}

	if len(skills) == 0 {
		return models.Candidate{}, errors.New("analysis lists no named skills")
	}

	name := strings.TrimSpace(a.Name)
	if name == "" || strings.EqualFold(name, "unknown") {
		name = DeriveName(filename)
	}

	return models.Candidate{
		Name:   name,
		Email:  strings.TrimSpace(a.Email),
		Phone:  strings.TrimSpace(a.Phone),
		Score:  score,
		Skills: models.MergeSkills(skills),
		File:   filename,
		Status: models.StatusForScore(score),
		Notes:  []string{},
	}, nil
}
