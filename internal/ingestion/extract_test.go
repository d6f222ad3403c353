package ingestion

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// TestIsBinaryData_PlainText tests that plain text is not detected as binary
func TestIsBinaryData_PlainText(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "Simple text",
			content: "This is a plain text CV with normal content.",
		},
		{
			name:    "Multi-line text",
			content: "John Doe\nSoftware Engineer\n5 years experience",
		},
		{
			name:    "Text with special chars",
			content: "Education: Bachelor's Degree in Computer Science\nGPA: 3.8/4.0",
		},
		{
			name:    "Empty string",
			content: "",
		},
		{
			name:    "Text with tabs and newlines",
			content: "Name:\tJohn\nTitle:\tEngineer\nYears:\t5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsBinaryData(tt.content) {
				t.Errorf("IsBinaryData() returned true for plain text: %q", tt.content)
			}
		})
	}
}

// TestIsBinaryData_PDF tests that PDF content is detected as binary
func TestIsBinaryData_PDF(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "PDF header v1.4",
			content: "%PDF-1.4\n%âãÏÓ\n",
		},
		{
			name:    "PDF header v1.5",
			content: "%PDF-1.5\n%ÓÔÅÔ\n1 0 obj\n",
		},
		{
			name:    "PDF header v1.7",
			content: "%PDF-1.7\n%%EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsBinaryData(tt.content) {
				t.Errorf("IsBinaryData() returned false for PDF content")
			}
		})
	}
}

// TestIsBinaryData_ZIP tests that ZIP/DOCX content is detected as binary
func TestIsBinaryData_ZIP(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "ZIP magic number",
			content: "PK\x03\x04",
		},
		{
			name:    "DOCX file (ZIP format)",
			content: "PK\x03\x04\x14\x00\x00\x00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsBinaryData(tt.content) {
				t.Errorf("IsBinaryData() returned false for ZIP/DOCX content")
			}
		})
	}
}

// TestIsBinaryData_HighNonPrintable tests binary detection with high non-printable chars
func TestIsBinaryData_HighNonPrintable(t *testing.T) {
	// Create a string with many non-printable characters (>30% of first 1000 chars)
	// This simulates corrupted or binary data
	// Non-printable means < 32 excluding \n, \r, \t
	var sb strings.Builder
	// Add 400 non-printable characters (bytes 0-31 except 9, 10, 13)
	for i := 0; i < 400; i++ {
		sb.WriteByte(0x01) // Non-printable byte
	}
	// Add 600 printable characters
	for i := 0; i < 600; i++ {
		sb.WriteString("x")
	}

	content := sb.String()

	if !IsBinaryData(content) {
		t.Errorf("IsBinaryData() returned false for content with high proportion of non-printable chars")
	}
}

// TestIsBinaryData_LowNonPrintable tests that text with few non-printable chars is not binary
func TestIsBinaryData_LowNonPrintable(t *testing.T) {
	// Create mostly normal text with a few non-printable characters
	content := "John Doe - Software Engineer\x00\nExperience: 5 years\nEducation: BS Computer Science"

	if IsBinaryData(content) {
		t.Errorf("IsBinaryData() returned true for mostly text content with few non-printable chars")
	}
}

// TestExtractText_TXT tests that plain text files are read as-is
func TestExtractText_TXT(t *testing.T) {
	body := "Jane Smith\nSenior Engineer\nSkills: Go, SQL, Docker, Kubernetes and AWS"
	f := FromBytes("jane.txt", "text/plain", []byte(body))

	result, err := ExtractText(context.Background(), f)
	if err != nil {
		t.Fatalf("ExtractText() returned error for .txt file: %v", err)
	}
	if result != body {
		t.Errorf("ExtractText() = %q, want %q", result, body)
	}
}

// TestExtractText_TooShort tests that near-empty documents are reported as failed extractions
func TestExtractText_TooShort(t *testing.T) {
	f := FromBytes("short.txt", "text/plain", []byte("CV"))

	_, err := ExtractText(context.Background(), f)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("Expected ErrExtraction for short text, got %v", err)
	}
}

// TestExtractText_UnsupportedType tests that unsupported file types return error
func TestExtractText_UnsupportedType(t *testing.T) {
	tests := []string{
		"test.jpg",
		"test.png",
		"test.xlsx",
		"test.unknown",
	}

	for _, filename := range tests {
		t.Run(filename, func(t *testing.T) {
			_, err := ExtractText(context.Background(), FromBytes(filename, "", []byte("data")))
			if err == nil {
				t.Fatalf("ExtractText() should return error for unsupported file type %s", filename)
			}
			if !strings.Contains(err.Error(), "unsupported file type") {
				t.Errorf("Error message should mention 'unsupported file type', got: %v", err)
			}
		})
	}
}

// TestExtractText_OpenFailure tests that open errors are surfaced
func TestExtractText_OpenFailure(t *testing.T) {
	f := models.FileHandle{
		Name: "missing.docx",
		Open: func() (io.ReadCloser, error) { return nil, errors.New("gone") },
	}

	_, err := ExtractText(context.Background(), f)
	if err == nil || !strings.Contains(err.Error(), "failed to open") {
		t.Errorf("Expected open failure, got %v", err)
	}
}

// TestExtractText_Cancelled tests that a cancelled context stops extraction
func TestExtractText_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExtractText(ctx, FromBytes("a.pdf", "", []byte("%PDF-1.4")))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestSanitizeUTF8 tests that invalid sequences are replaced and valid text kept
func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "valid ASCII", input: "Hello, World!", want: "Hello, World!"},
		{name: "valid multi-language", input: "José - 软件工程师", want: "José - 软件工程师"},
		{name: "invalid middle", input: "Before" + string([]byte{0xFF}) + "After", want: "Before�After"},
		{name: "invalid run collapses", input: string([]byte{0xFF, 0xFE}) + "Text", want: "�Text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeUTF8(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeUTF8(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("SanitizeUTF8() returned invalid UTF-8")
			}
		})
	}
}
