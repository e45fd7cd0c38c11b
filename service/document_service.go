package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"doc-assistant/types"
	"doc-assistant/utils"
)

// ErrNoReadableText means extraction produced nothing to index, usually a
// scanned image-only PDF.
var ErrNoReadableText = errors.New("no readable text in the uploaded file, make sure PDFs aren't scanned images")

var DefaultDocumentServiceConfig = types.DocumentServiceConfig{
	MaxChunkSize: 400,
	OverlapSize:  60,
}

// DocumentService turns uploaded files into overlapping text chunks.
// Supported inputs: .pdf (per page), .md and .txt (whole file).
type DocumentService struct {
	maxChunkSize int // Maximum size of each text chunk
	overlapSize  int // Size of overlap between chunks
}

func NewDocumentService(config types.DocumentServiceConfig) *DocumentService {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultDocumentServiceConfig.MaxChunkSize
	}
	if config.OverlapSize < 0 || config.OverlapSize >= config.MaxChunkSize {
		config.OverlapSize = DefaultDocumentServiceConfig.OverlapSize
	}
	return &DocumentService{
		maxChunkSize: config.MaxChunkSize,
		overlapSize:  config.OverlapSize,
	}
}

type documentPage struct {
	Number int
	Text   string
}

// ProcessResult summarizes one extraction run.
type ProcessResult struct {
	TotalPages int
	Chunks     int
	Warnings   []string
}

// ProcessDocument reads a file, chunks its text, and sends the chunks on c
// in document order. The channel is closed when processing finishes.
func (s *DocumentService) ProcessDocument(filePath string, req types.UploadRequest, c chan<- types.DocumentChunk) (*ProcessResult, error) {
	defer close(c)

	pages, totalPages, warnings, err := s.extractPages(filePath)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{
		TotalPages: totalPages,
		Warnings:   warnings,
	}

	title := req.Title
	if title == "" {
		title = utils.GetFileNameWithoutExt(filePath)
	}
	source := req.Source
	if source == "" {
		source = filepath.Base(filePath)
	}

	for _, page := range pages {
		text := s.cleanText(page.Text)
		if text == "" {
			continue
		}
		metadata := types.DocumentMetadata{
			Title:      title,
			Source:     source,
			PageNum:    page.Number,
			TotalPages: totalPages,
		}
		for _, chunk := range s.chunkText(text, metadata) {
			c <- chunk
			result.Chunks++
		}
	}

	if result.Chunks == 0 {
		return result, ErrNoReadableText
	}
	return result, nil
}

func (s *DocumentService) extractPages(filePath string) ([]documentPage, int, []string, error) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".pdf":
		return s.extractPDF(filePath)
	case ".md", ".markdown":
		text, err := extractMarkdown(filePath)
		if err != nil {
			return nil, 0, nil, err
		}
		return []documentPage{{Number: 1, Text: text}}, 1, nil, nil
	case ".txt":
		text, err := extractPlainText(filePath)
		if err != nil {
			return nil, 0, nil, err
		}
		return []documentPage{{Number: 1, Text: text}}, 1, nil, nil
	default:
		return nil, 0, nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

func (s *DocumentService) extractPDF(filePath string) (pages []documentPage, totalPages int, warnings []string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, 0, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, 0, nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	totalPages = reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			warnings = append(warnings, fmt.Sprintf("page %d has no extractable text", pageNum))
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			log.Warn().Int("page", pageNum).Str("file", filepath.Base(filePath)).Msg("no extractable text on page")
			warnings = append(warnings, fmt.Sprintf("page %d has no extractable text", pageNum))
			continue
		}
		pages = append(pages, documentPage{Number: pageNum, Text: text})
	}
	return pages, totalPages, warnings, nil
}

// extractMarkdown walks the markdown AST and keeps only the text content,
// so headings and emphasis markers don't end up inside chunks.
func extractMarkdown(filePath string) (string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}

	root := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	var sb strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			for i := 0; i < node.Lines().Len(); i++ {
				line := node.Lines().At(i)
				sb.Write(line.Value(src))
			}
		case *ast.CodeBlock:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			for i := 0; i < node.Lines().Len(); i++ {
				line := node.Lines().At(i)
				sb.Write(line.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func extractPlainText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	// latin-1 fallback for legacy text files
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// chunkText splits text into overlapping chunks with proper sentence boundaries
func (s *DocumentService) chunkText(text string, metadata types.DocumentMetadata) []types.DocumentChunk {
	textLen := len(text)
	if textLen == 0 {
		return nil
	}

	appendChunk := func(chunks []types.DocumentChunk, raw string, offset int) []types.DocumentChunk {
		trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
		offset += len(raw) - len(trimmed)
		content := strings.TrimRightFunc(trimmed, unicode.IsSpace)
		if content == "" {
			return chunks
		}
		return append(chunks, types.DocumentChunk{
			Content:  content,
			Page:     metadata.PageNum,
			Offset:   offset,
			Metadata: metadata,
		})
	}

	// Return early if text fits in one chunk
	if textLen <= s.maxChunkSize {
		return appendChunk(nil, text, 0)
	}

	var chunks []types.DocumentChunk
	currentPos := 0
	for currentPos < textLen {
		chunkEnd := currentPos + s.maxChunkSize
		if chunkEnd >= textLen {
			chunks = appendChunk(chunks, text[currentPos:], currentPos)
			break
		}

		// Find nearest sentence end, fall back to a word boundary.
		// Scan inside the window only so a chunk never exceeds the
		// configured size.
		sentenceEnd := 0
		for i := chunkEnd - 1; i > currentPos; i-- {
			if text[i] == '.' || text[i] == '?' || text[i] == '!' {
				sentenceEnd = i + 1
				break
			}
		}
		if sentenceEnd == 0 {
			for i := chunkEnd - 1; i > currentPos; i-- {
				if text[i] == ' ' || text[i] == '\n' {
					sentenceEnd = i
					break
				}
			}
		}
		if sentenceEnd == 0 {
			sentenceEnd = chunkEnd
		}

		chunks = appendChunk(chunks, text[currentPos:sentenceEnd], currentPos)

		// Step back by the overlap, but always make progress
		nextPos := sentenceEnd - s.overlapSize
		if nextPos <= currentPos {
			nextPos = sentenceEnd
		}
		currentPos = nextPos
	}

	return chunks
}

func (s *DocumentService) cleanText(text string) string {
	replacements := map[string]string{
		"\x00": "",   // Null character
		"�": "", // Unicode replacement character
		"\x1b": "",   // Escape character
		"\r":   "",   // Carriage return
		"\f":   "\n", // Form feed to newline
	}
	cleaned := text
	for old, replacement := range replacements {
		cleaned = strings.ReplaceAll(cleaned, old, replacement)
	}
	for strings.Contains(cleaned, "  ") {
		cleaned = strings.ReplaceAll(cleaned, "  ", " ")
	}
	return strings.TrimSpace(cleaned)
}
