// Package scoring turns a resume file into a scored candidate. Every
// implementation satisfies Scorer so the pipeline never knows which one runs.
package scoring

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// ErrScoringUnavailable wraps every failure to analyse a file
var ErrScoringUnavailable = errors.New("scoring unavailable")

// Scorer evaluates one resume under the committed weights. The returned
// candidate has a name, a score in [0,100] and a non-empty skill list; id and
// processedAt are left for the store to assign.
type Scorer interface {
	Score(ctx context.Context, file models.FileHandle, weights models.ScoringWeights) (models.Candidate, error)
}

// DeriveName builds a display name from a filename: extension dropped,
// separators turned into spaces, each word title-cased.
func DeriveName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}

	if len(words) == 0 {
		return "Unknown"
	}
	return strings.Join(words, " ")
}

// emailFor derives a placeholder address from a display name
func emailFor(name string) string {
	local := strings.ToLower(strings.Join(strings.Fields(name), "."))
	if local == "" || local == "unknown" {
		return ""
	}
	return local + "@example.com"
}
