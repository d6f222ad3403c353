package ingestion

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "Jane_Smith.pdf", "Test CV content")

	h, err := FromPath(path)
	if err != nil {
		t.Fatalf("FromPath() failed: %v", err)
	}

	if h.Name != "Jane_Smith.pdf" {
		t.Errorf("Expected name Jane_Smith.pdf, got %s", h.Name)
	}
	if h.ContentType != MIMEPDF {
		t.Errorf("Expected content type %s, got %s", MIMEPDF, h.ContentType)
	}
	if h.Size != int64(len("Test CV content")) {
		t.Errorf("Expected size %d, got %d", len("Test CV content"), h.Size)
	}

	r, err := h.Open()
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "Test CV content" {
		t.Errorf("Expected content 'Test CV content', got '%s'", string(data))
	}
}

func TestFromPath_Directory(t *testing.T) {
	if _, err := FromPath(t.TempDir()); err == nil {
		t.Error("Expected error for a directory")
	}
}

func TestLoadPaths(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "b_resume.docx", "docx")
	writeFile(t, tmpDir, "a_resume.pdf", "pdf")
	writeFile(t, tmpDir, "notes.txt", "skip me")
	if err := os.Mkdir(filepath.Join(tmpDir, "nested"), 0755); err != nil {
		t.Fatalf("Failed to create nested dir: %v", err)
	}

	otherDir := t.TempDir()
	explicit := writeFile(t, otherDir, "photo.png", "png")

	handles, err := LoadPaths([]string{tmpDir, explicit})
	if err != nil {
		t.Fatalf("LoadPaths() failed: %v", err)
	}

	want := []string{"a_resume.pdf", "b_resume.docx", "photo.png"}
	if len(handles) != len(want) {
		t.Fatalf("Expected %d handles, got %d", len(want), len(handles))
	}
	for i, name := range want {
		if handles[i].Name != name {
			t.Errorf("Handle %d: expected %s, got %s", i, name, handles[i].Name)
		}
	}
}

func TestLoadPaths_Missing(t *testing.T) {
	if _, err := LoadPaths([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("Expected error for a missing path")
	}
}

func TestFromBytes(t *testing.T) {
	h := FromBytes("cv.docx", "", []byte("hello"))
	if h.ContentType != MIMEDocx {
		t.Errorf("Expected docx content type, got %s", h.ContentType)
	}
	if h.Size != 5 {
		t.Errorf("Expected size 5, got %d", h.Size)
	}

	// handles can be opened more than once
	for i := 0; i < 2; i++ {
		r, err := h.Open()
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		data, _ := io.ReadAll(r)
		r.Close()
		if string(data) != "hello" {
			t.Errorf("Read %d: expected hello, got %s", i, string(data))
		}
	}
}
