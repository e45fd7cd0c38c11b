package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"doc-assistant/database"
	"doc-assistant/types"
	"doc-assistant/utils"
)

var supportedExtensions = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// FileService stores uploaded files and feeds them through the
// extract -> chunk -> embed -> index pipeline.
type FileService struct {
	uploadDir string
	vectorDB  database.VectorStore
	documents *DocumentService
	embedder  Embedder
}

func NewFileService(
	uploadDir string,
	vectorDB database.VectorStore,
	documents *DocumentService,
	embedder Embedder,
) *FileService {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		panic(err)
	}
	return &FileService{
		uploadDir: uploadDir,
		vectorDB:  vectorDB,
		documents: documents,
		embedder:  embedder,
	}
}

// UploadFile saves an uploaded file and indexes its content, reporting
// progress on c while pages are processed.
func (s *FileService) UploadFile(ctx context.Context, req types.UploadRequest, file *multipart.FileHeader, c chan<- types.ProcessingDocumentStatus) (*types.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !supportedExtensions[ext] {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	if req.Title == "" {
		req.Title = utils.GetFileNameWithoutExt(file.Filename)
	}
	if req.Source == "" {
		req.Source = file.Filename
	}

	destPath := filepath.Join(s.uploadDir, utils.TimestampedFileName(file.Filename))
	dst, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	result, err := s.indexFile(ctx, destPath, req, c)
	if err != nil {
		return nil, err
	}

	return &types.UploadResponse{
		OriginalName: req.Title,
		Chunks:       result.Chunks,
		Warnings:     result.Warnings,
	}, nil
}

// IngestFile indexes a file that is already on disk. Used by the CLI.
func (s *FileService) IngestFile(ctx context.Context, filePath string, tags []string) (*ProcessResult, error) {
	req := types.UploadRequest{
		Title:  utils.GetFileNameWithoutExt(filePath),
		Source: filepath.Base(filePath),
		Tags:   tags,
	}
	return s.indexFile(ctx, filePath, req, nil)
}

func (s *FileService) indexFile(ctx context.Context, filePath string, req types.UploadRequest, c chan<- types.ProcessingDocumentStatus) (*ProcessResult, error) {
	chunkChan := make(chan types.DocumentChunk)
	type processOutcome struct {
		result *ProcessResult
		err    error
	}
	outcomeChan := make(chan processOutcome, 1)
	go func() {
		result, err := s.documents.ProcessDocument(filePath, req, chunkChan)
		outcomeChan <- processOutcome{result: result, err: err}
	}()

	var chunks []types.DocumentChunk
	for chunk := range chunkChan {
		chunks = append(chunks, chunk)
		sendStatus(ctx, c, types.ProcessingDocumentStatus{
			Status:         "processing",
			Message:        "Processing document",
			Progress:       float64(chunk.Metadata.PageNum) / float64(chunk.Metadata.TotalPages),
			TotalPages:     chunk.Metadata.TotalPages,
			ProcessedPages: chunk.Metadata.PageNum,
		})
	}
	outcome := <-outcomeChan
	if outcome.err != nil {
		return nil, outcome.err
	}

	if err := s.embedAndStore(ctx, req, chunks); err != nil {
		return nil, err
	}

	sendStatus(ctx, c, types.ProcessingDocumentStatus{
		Status:         "completed",
		Message:        "Done processing document",
		Progress:       1,
		TotalPages:     outcome.result.TotalPages,
		ProcessedPages: outcome.result.TotalPages,
		Warnings:       outcome.result.Warnings,
	})
	log.Info().
		Str("file", filepath.Base(filePath)).
		Int("chunks", outcome.result.Chunks).
		Int("pages", outcome.result.TotalPages).
		Msg("document indexed")

	return outcome.result, nil
}

// sendStatus drops the update if the receiver is gone.
func sendStatus(ctx context.Context, c chan<- types.ProcessingDocumentStatus, status types.ProcessingDocumentStatus) {
	if c == nil {
		return
	}
	select {
	case c <- status:
	case <-ctx.Done():
	}
}

func (s *FileService) embedAndStore(ctx context.Context, req types.UploadRequest, chunks []types.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	now := time.Now().Unix()
	docs := make([]types.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = types.Document{
			Content: chunk.Content,
			Metadata: types.Metadata{
				Title:  chunk.Metadata.Title,
				Source: chunk.Metadata.Source,
				Tags:   req.Tags,
				Custom: map[string]string{
					"page":   strconv.Itoa(chunk.Page),
					"offset": strconv.Itoa(chunk.Offset),
				},
			},
			CreatedAt: now,
		}
	}

	if err := s.vectorDB.BatchInsertDocuments(ctx, docs, embeddings); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return nil
}
