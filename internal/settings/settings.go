// Package settings owns the scoring-weight configuration: loading it from
// the persistence collaborator, validating drafts and committing them.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/kv"
	"github.com/fmuoria/candidate-screener/internal/models"
)

// ErrOutOfBounds is matched by every OutOfBoundsError
var ErrOutOfBounds = errors.New("config out of bounds")

// FieldError describes one field that violates its declared bound
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Param      string `json:"param,omitempty"`
	Message    string `json:"message"`
}

// OutOfBoundsError rejects a draft without touching the committed weights
type OutOfBoundsError struct {
	Fields []FieldError
}

func (e *OutOfBoundsError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("config out of bounds: %s", strings.Join(msgs, "; "))
}

func (e *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

// Report is the outcome of validating a draft. OK is false only when a field
// is out of bounds; an unbalanced weight sum is a warning.
type Report struct {
	OK       bool         `json:"ok"`
	Warnings []string     `json:"warnings"`
	Errors   []FieldError `json:"errors"`
}

// Model holds the committed scoring weights.
type Model struct {
	store    kv.Store
	logger   *zap.Logger
	validate *validator.Validate

	mu        sync.RWMutex
	committed models.ScoringWeights
}

// New creates a model holding the defaults until Load is called
func New(store kv.Store, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Model{
		store:     store,
		logger:    logger,
		validate:  v,
		committed: models.DefaultScoringWeights(),
	}
}

// Load reads the persisted weights. Missing, unreadable or out-of-bounds
// data falls back to the defaults; Load never fails.
func (m *Model) Load(ctx context.Context) models.ScoringWeights {
	weights := models.DefaultScoringWeights()

	data, ok, err := m.store.Read(ctx, kv.KeySettings)
	switch {
	case err != nil:
		m.logger.Warn("failed to read settings, using defaults", zap.Error(err))
	case !ok:
		m.logger.Debug("no persisted settings, using defaults")
	default:
		var persisted models.ScoringWeights
		if err := json.Unmarshal(data, &persisted); err != nil {
			m.logger.Warn("failed to parse settings, using defaults", zap.Error(err))
		} else if report := m.Validate(persisted); !report.OK {
			m.logger.Warn("persisted settings out of bounds, using defaults",
				zap.Int("fields", len(report.Errors)))
		} else {
			weights = persisted
		}
	}

	m.mu.Lock()
	m.committed = weights
	m.mu.Unlock()

	return weights
}

// Current returns the committed weights
func (m *Model) Current() models.ScoringWeights {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed
}

// Draft returns an editable copy of the committed weights
func (m *Model) Draft() models.ScoringWeights {
	return m.Current()
}

// HasChanges reports whether draft differs from the committed weights
func (m *Model) HasChanges(draft models.ScoringWeights) bool {
	return draft != m.Current()
}

// Validate checks every field against its bound and the weight balance
func (m *Model) Validate(draft models.ScoringWeights) Report {
	report := Report{OK: true, Warnings: []string{}, Errors: []FieldError{}}

	if err := m.validate.Struct(draft); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			report.OK = false
			report.Errors = append(report.Errors, FieldError{Field: "(root)", Constraint: "invalid", Message: err.Error()})
			return report
		}
		for _, fe := range verrs {
			report.Errors = append(report.Errors, toFieldError(fe))
		}
		report.OK = false
	}

	if sum := draft.WeightSum(); sum != 100 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("skills, experience and education weights sum to %d%%, expected 100%%", sum))
	}

	return report
}

// Commit replaces the committed weights with draft. An out-of-bounds draft
// is rejected whole. A persistence failure keeps the new weights in memory
// and is returned for the caller to surface.
func (m *Model) Commit(ctx context.Context, draft models.ScoringWeights) error {
	report := m.Validate(draft)
	if !report.OK {
		return &OutOfBoundsError{Fields: report.Errors}
	}
	for _, w := range report.Warnings {
		m.logger.Info("committing unbalanced settings", zap.String("warning", w))
	}

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.committed = draft
	if err := m.store.Write(ctx, kv.KeySettings, data); err != nil {
		m.logger.Warn("settings kept in memory only", zap.Error(err))
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}

// Reset commits and returns the defaults
func (m *Model) Reset(ctx context.Context) (models.ScoringWeights, error) {
	defaults := models.DefaultScoringWeights()
	return defaults, m.Commit(ctx, defaults)
}

func toFieldError(fe validator.FieldError) FieldError {
	out := FieldError{
		Field:      fe.Field(),
		Constraint: fe.Tag(),
		Param:      fe.Param(),
	}
	switch fe.Tag() {
	case "min":
		out.Message = fmt.Sprintf("%s must be at least %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "max":
		out.Message = fmt.Sprintf("%s must be at most %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "oneof":
		out.Message = fmt.Sprintf("%s must be one of [%s] (got %v)", fe.Field(), fe.Param(), fe.Value())
	default:
		out.Message = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return out
}
