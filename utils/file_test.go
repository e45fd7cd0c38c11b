package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "safe name untouched",
			in:   "report-2024_v1.pdf",
			want: "report-2024_v1.pdf",
		},
		{
			name: "spaces replaced",
			in:   "my travel notes.txt",
			want: "my_travel_notes.txt",
		},
		{
			name: "shell characters replaced",
			in:   "a;b|c&d.md",
			want: "a_b_c_d.md",
		},
		{
			name: "unicode replaced",
			in:   "café.txt",
			want: "caf_.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.in); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimestampedFileName(t *testing.T) {
	got := TimestampedFileName("guide.pdf")
	matched, err := regexp.MatchString(`^guide_\d+\.pdf$`, got)
	if err != nil {
		t.Fatal(err)
	}
	if !matched {
		t.Errorf("TimestampedFileName(%q) = %q, want guide_<unix>.pdf", "guide.pdf", got)
	}
}

func TestGetFileNameWithoutExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"path/to/report.pdf", "report"},
		{"notes.md", "notes"},
		{"no_extension", "no_extension"},
		{"archive.tar.gz", "archive.tar"},
	}

	for _, tt := range tests {
		if got := GetFileNameWithoutExt(tt.in); got != tt.want {
			t.Errorf("GetFileNameWithoutExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCopyFileWithTimestamp(t *testing.T) {
	srcDir := t.TempDir()
	uploadDir := filepath.Join(t.TempDir(), "uploads")

	src := filepath.Join(srcDir, "doc.txt")
	if err := os.WriteFile(src, []byte("document body"), 0644); err != nil {
		t.Fatal(err)
	}

	dest, err := CopyFileWithTimestamp(src, uploadDir)
	if err != nil {
		t.Fatalf("CopyFileWithTimestamp() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(dest), "doc_") || !strings.HasSuffix(dest, ".txt") {
		t.Errorf("destination name = %q", dest)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read copied file: %v", err)
	}
	if string(data) != "document body" {
		t.Errorf("copied content = %q", data)
	}
}

func TestCopyFileWithTimestamp_MissingSource(t *testing.T) {
	if _, err := CopyFileWithTimestamp("does/not/exist.txt", t.TempDir()); err == nil {
		t.Error("CopyFileWithTimestamp() with missing source should fail")
	}
}
