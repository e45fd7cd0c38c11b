package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"doc-assistant/types"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func collectChunks(t *testing.T, s *DocumentService, path string, req types.UploadRequest) ([]types.DocumentChunk, *ProcessResult, error) {
	t.Helper()
	c := make(chan types.DocumentChunk)
	type outcome struct {
		result *ProcessResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.ProcessDocument(path, req, c)
		done <- outcome{result: result, err: err}
	}()
	var chunks []types.DocumentChunk
	for chunk := range c {
		chunks = append(chunks, chunk)
	}
	out := <-done
	return chunks, out.result, out.err
}

func TestProcessDocument_ShortTextSingleChunk(t *testing.T) {
	s := NewDocumentService(types.DocumentServiceConfig{MaxChunkSize: 400, OverlapSize: 60})
	path := writeTempFile(t, "note.txt", "A short note about nothing in particular.")

	chunks, result, err := collectChunks(t, s, path, types.UploadRequest{Title: "note"})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != "A short note about nothing in particular." {
		t.Errorf("unexpected chunk content: %q", chunks[0].Content)
	}
	if chunks[0].Page != 1 || chunks[0].Offset != 0 {
		t.Errorf("got page %d offset %d, want page 1 offset 0", chunks[0].Page, chunks[0].Offset)
	}
	if result.Chunks != 1 || result.TotalPages != 1 {
		t.Errorf("result = %+v, want 1 chunk over 1 page", result)
	}
}

func TestProcessDocument_LongTextOverlappingChunks(t *testing.T) {
	s := NewDocumentService(types.DocumentServiceConfig{MaxChunkSize: 100, OverlapSize: 20})

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog. ")
	}
	path := writeTempFile(t, "long.txt", sb.String())

	chunks, _, err := collectChunks(t, s, path, types.UploadRequest{})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	prevOffset := -1
	for i, chunk := range chunks {
		if len(chunk.Content) > 100 {
			t.Errorf("chunk %d is %d bytes, want <= 100", i, len(chunk.Content))
		}
		if chunk.Offset <= prevOffset {
			t.Errorf("chunk %d offset %d not increasing (previous %d)", i, chunk.Offset, prevOffset)
		}
		prevOffset = chunk.Offset
	}

	// Chunks break on sentence boundaries where one is within reach.
	for i, chunk := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(chunk.Content, ".") {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, chunk.Content)
		}
	}
}

func TestProcessDocument_ChunkOverlapCoversText(t *testing.T) {
	s := NewDocumentService(types.DocumentServiceConfig{MaxChunkSize: 80, OverlapSize: 20})

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Paris has many museums worth a full day each. ")
	}
	text := strings.TrimSpace(sb.String())
	path := writeTempFile(t, "paris.txt", text)

	chunks, _, err := collectChunks(t, s, path, types.UploadRequest{})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}

	// Every byte of the source text falls inside at least one chunk window.
	covered := 0
	for _, chunk := range chunks {
		if chunk.Offset > covered {
			t.Fatalf("gap before offset %d (covered up to %d)", chunk.Offset, covered)
		}
		if end := chunk.Offset + len(chunk.Content); end > covered {
			covered = end
		}
	}
	if covered < len(text)-1 {
		t.Errorf("chunks cover %d of %d bytes", covered, len(text))
	}
}

func TestProcessDocument_EmptyFile(t *testing.T) {
	s := NewDocumentService(DefaultDocumentServiceConfig)
	path := writeTempFile(t, "empty.txt", "   \n\n  ")

	_, _, err := collectChunks(t, s, path, types.UploadRequest{})
	if !errors.Is(err, ErrNoReadableText) {
		t.Errorf("ProcessDocument() error = %v, want ErrNoReadableText", err)
	}
}

func TestProcessDocument_UnsupportedExtension(t *testing.T) {
	s := NewDocumentService(DefaultDocumentServiceConfig)
	path := writeTempFile(t, "image.png", "not a document")

	_, _, err := collectChunks(t, s, path, types.UploadRequest{})
	if err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Errorf("ProcessDocument() error = %v, want unsupported file type", err)
	}
}

func TestProcessDocument_MarkdownStripsFormatting(t *testing.T) {
	s := NewDocumentService(DefaultDocumentServiceConfig)
	md := "# Travel Notes\n\nVisit the **Louvre** early.\n\n- Day one: museums\n- Day two: parks\n"
	path := writeTempFile(t, "notes.md", md)

	chunks, _, err := collectChunks(t, s, path, types.UploadRequest{Title: "notes"})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("got no chunks")
	}

	joined := chunks[0].Content
	for _, marker := range []string{"#", "**", "- "} {
		if strings.Contains(joined, marker) {
			t.Errorf("markdown marker %q survived extraction: %q", marker, joined)
		}
	}
	for _, want := range []string{"Travel Notes", "Louvre", "Day one: museums"} {
		if !strings.Contains(joined, want) {
			t.Errorf("extracted text missing %q: %q", want, joined)
		}
	}
}

func TestProcessDocument_MetadataDefaults(t *testing.T) {
	s := NewDocumentService(DefaultDocumentServiceConfig)
	path := writeTempFile(t, "guide.txt", "Some travel guidance worth indexing.")

	chunks, _, err := collectChunks(t, s, path, types.UploadRequest{})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if got := chunks[0].Metadata.Title; got != "guide" {
		t.Errorf("default title = %q, want %q", got, "guide")
	}
	if got := chunks[0].Metadata.Source; got != "guide.txt" {
		t.Errorf("default source = %q, want %q", got, "guide.txt")
	}
}

func TestChunkText_NeverExceedsMaxSize(t *testing.T) {
	s := NewDocumentService(types.DocumentServiceConfig{MaxChunkSize: 100, OverlapSize: 20})

	// An unbreakable 100-byte run with the first boundary right after the
	// window must not stretch the chunk past the configured size.
	text := strings.Repeat("a", 100) + "." + strings.Repeat("b", 60)
	chunks := s.chunkText(text, types.DocumentMetadata{PageNum: 1})
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk.Content) > 100 {
			t.Errorf("chunk %d is %d bytes, want <= 100", i, len(chunk.Content))
		}
	}
}

func TestChunkText_BoundaryOnWindowEdge(t *testing.T) {
	s := NewDocumentService(types.DocumentServiceConfig{MaxChunkSize: 100, OverlapSize: 20})

	// A sentence end on the window's last byte fills the chunk exactly.
	text := strings.Repeat("a", 99) + "." + strings.Repeat("b", 60)
	chunks := s.chunkText(text, types.DocumentMetadata{PageNum: 1})
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	if len(chunks[0].Content) != 100 {
		t.Errorf("first chunk is %d bytes, want exactly 100", len(chunks[0].Content))
	}
}

func TestChunkText_OffsetPointsAtContent(t *testing.T) {
	s := NewDocumentService(types.DocumentServiceConfig{MaxChunkSize: 40, OverlapSize: 10})

	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("Word salad sentence number here. ")
	}
	text := strings.TrimSpace(sb.String())

	chunks := s.chunkText(text, types.DocumentMetadata{PageNum: 1})
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, chunk := range chunks {
		got := text[chunk.Offset : chunk.Offset+len(chunk.Content)]
		if got != chunk.Content {
			t.Errorf("chunk %d: text[%d:] = %q, content = %q", i, chunk.Offset, got, chunk.Content)
		}
	}
}

func TestCleanText(t *testing.T) {
	s := NewDocumentService(DefaultDocumentServiceConfig)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips control characters",
			in:   "hello\x00 world\x1b!",
			want: "hello world!",
		},
		{
			name: "drops replacement runes",
			in:   "caf�e",
			want: "cafe",
		},
		{
			name: "normalizes CRLF",
			in:   "line one\r\nline two",
			want: "line one\nline two",
		},
		{
			name: "form feed becomes newline",
			in:   "page one\fpage two",
			want: "page one\npage two",
		},
		{
			name: "collapses runs of spaces",
			in:   "too    many     spaces",
			want: "too many spaces",
		},
		{
			name: "trims surrounding whitespace",
			in:   "  padded  ",
			want: "padded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.cleanText(tt.in); got != tt.want {
				t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewDocumentService_InvalidConfigFallsBack(t *testing.T) {
	s := NewDocumentService(types.DocumentServiceConfig{MaxChunkSize: 0, OverlapSize: -5})
	if s.maxChunkSize != DefaultDocumentServiceConfig.MaxChunkSize {
		t.Errorf("maxChunkSize = %d, want default %d", s.maxChunkSize, DefaultDocumentServiceConfig.MaxChunkSize)
	}
	if s.overlapSize != DefaultDocumentServiceConfig.OverlapSize {
		t.Errorf("overlapSize = %d, want default %d", s.overlapSize, DefaultDocumentServiceConfig.OverlapSize)
	}
}
