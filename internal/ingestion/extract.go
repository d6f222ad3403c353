package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/fmuoria/candidate-screener/internal/models"
)

const (
	// MinExtractedTextLength is the minimum text length required for successful extraction
	MinExtractedTextLength = 50
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
)

// ErrExtraction is returned when a document yields no usable text
var ErrExtraction = errors.New("text extraction failed")

// ExtractText converts a PDF, DOC or DOCX resume to plain text. Plain text
// files are read as-is.
func ExtractText(ctx context.Context, f models.FileHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Open == nil {
		return "", fmt.Errorf("%w: %s has no content", ErrExtraction, f.Name)
	}

	r, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer r.Close()

	ext := strings.ToLower(filepath.Ext(f.Name))
	var text string
	switch {
	case ext == ".txt":
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		text = string(raw)
	default:
		mimeType := ContentTypeFor(f.Name)
		if mimeType == "" {
			mimeType = mediaType(f.ContentType)
		}
		if !IsSupported("", mimeType) {
			return "", fmt.Errorf("%w: unsupported file type: %s", ErrExtraction, ext)
		}
		res, err := docconv.Convert(r, mimeType, true)
		if err != nil {
			return "", fmt.Errorf("%w: failed to parse %s: %w", ErrExtraction, f.Name, err)
		}
		text = res.Body
	}

	text = strings.TrimSpace(SanitizeUTF8(text))
	if IsBinaryData(text) {
		return "", fmt.Errorf("%w: %s still looks binary after conversion", ErrExtraction, f.Name)
	}
	if len(text) < MinExtractedTextLength {
		return "", fmt.Errorf("%w: extracted text is too short from %s", ErrExtraction, f.Name)
	}
	return text, nil
}

// SanitizeUTF8 replaces invalid byte sequences with the Unicode replacement character
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	// PDF magic number
	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// ZIP magic number (DOCX files)
	if strings.HasPrefix(content, "PK") {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
