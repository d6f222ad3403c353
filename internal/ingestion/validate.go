// Package ingestion turns uploads, local paths and mail attachments into
// resume file handles, validates them and extracts their text.
package ingestion

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// DefaultMaxFileSize is the largest resume accepted, 20MB
const DefaultMaxFileSize int64 = 20 << 20

const (
	MIMEPDF  = "application/pdf"
	MIMEDoc  = "application/msword"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var supportedExtensions = map[string]string{
	".pdf":  MIMEPDF,
	".doc":  MIMEDoc,
	".docx": MIMEDocx,
}

// ErrInvalidFile is matched by every ValidationError
var ErrInvalidFile = errors.New("invalid file")

// Reasons a file is rejected
const (
	ReasonUnsupportedType = "unsupported file type"
	ReasonTooLarge        = "file too large"
	ReasonEmpty           = "file is empty"
)

// ValidationError describes why a file was rejected before scoring
type ValidationError struct {
	File   string
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", e.File, e.Reason, e.Detail)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidFile
}

// Validator checks file type and size
type Validator struct {
	MaxSize int64
}

// NewValidator creates a validator. A non-positive maxSize uses DefaultMaxFileSize.
func NewValidator(maxSize int64) Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return Validator{MaxSize: maxSize}
}

// Validate accepts PDF, DOC and DOCX files, recognised by extension or by
// MIME type, that are no larger than MaxSize.
func (v Validator) Validate(f models.FileHandle) error {
	if !IsSupported(f.Name, f.ContentType) {
		return &ValidationError{File: f.Name, Reason: ReasonUnsupportedType, Detail: describeType(f)}
	}
	if f.Size > v.MaxSize {
		return &ValidationError{
			File:   f.Name,
			Reason: ReasonTooLarge,
			Detail: fmt.Sprintf("%.1fMB, limit %.0fMB", float64(f.Size)/(1<<20), float64(v.MaxSize)/(1<<20)),
		}
	}
	if f.Size == 0 {
		return &ValidationError{File: f.Name, Reason: ReasonEmpty}
	}
	return nil
}

// Partition splits files into accepted and rejected, keeping input order
func (v Validator) Partition(files []models.FileHandle) ([]models.FileHandle, []*ValidationError) {
	valid := make([]models.FileHandle, 0, len(files))
	var rejected []*ValidationError
	for _, f := range files {
		if err := v.Validate(f); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				rejected = append(rejected, verr)
			}
			continue
		}
		valid = append(valid, f)
	}
	return valid, rejected
}

// IsSupported reports whether a name or MIME type denotes a resume document
func IsSupported(name, contentType string) bool {
	if _, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return true
	}
	switch mediaType(contentType) {
	case MIMEPDF, MIMEDoc, MIMEDocx:
		return true
	}
	return false
}

// ContentTypeFor returns the resume MIME type for a filename, or "" when the
// extension is not a supported one.
func ContentTypeFor(name string) string {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func describeType(f models.FileHandle) string {
	ext := filepath.Ext(f.Name)
	switch {
	case ext != "" && f.ContentType != "":
		return fmt.Sprintf("%s, %s", ext, f.ContentType)
	case ext != "":
		return ext
	case f.ContentType != "":
		return f.ContentType
	default:
		return "no extension"
	}
}
