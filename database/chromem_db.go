package database

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"doc-assistant/types"
)

// ChromemStore is the embedded vector backend. It keeps the whole index
// in process memory (optionally persisted to disk), which matches the
// session-scoped lifetime of uploaded documents.
type ChromemStore struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
}

func NewChromemStore(path, collectionName string) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create chromem database: %w", err)
		}
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", collectionName, err)
	}
	return &ChromemStore{
		db:             db,
		collection:     collection,
		collectionName: collectionName,
	}, nil
}

func (s *ChromemStore) UpsertDocument(ctx context.Context, doc *types.Document, embedding []float32) error {
	chromemDoc, err := toChromemDocument(doc, embedding)
	if err != nil {
		return err
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{chromemDoc}, 1); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

func (s *ChromemStore) BatchInsertDocuments(ctx context.Context, docs []types.Document, embeddings [][]float32) error {
	chromemDocs := make([]chromem.Document, 0, len(docs))
	for i := range docs {
		var embedding []float32
		if embeddings != nil && i < len(embeddings) {
			embedding = embeddings[i]
		}
		chromemDoc, err := toChromemDocument(&docs[i], embedding)
		if err != nil {
			return err
		}
		chromemDocs = append(chromemDocs, chromemDoc)
	}
	if err := s.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]types.Document, []float32, error) {
	return s.SearchSimilarWithMetadata(ctx, embedding, types.Metadata{}, limit)
}

func (s *ChromemStore) SearchSimilarWithMetadata(ctx context.Context, embedding []float32, metadata types.Metadata, limit int) ([]types.Document, []float32, error) {
	// chromem rejects nResults larger than the collection size
	if count := s.collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return nil, nil, nil
	}

	where := make(map[string]string)
	if metadata.Title != "" {
		where["title"] = metadata.Title
	}
	if metadata.Source != "" {
		where["source"] = metadata.Source
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("similarity query failed: %w", err)
	}

	var docs []types.Document
	var scores []float32
	for _, res := range results {
		doc := fromChromemResult(res)
		// tag filtering is contains-any, which chromem's equality
		// filter cannot express
		if len(metadata.Tags) > 0 && !hasAnyTag(doc.Metadata.Tags, metadata.Tags) {
			continue
		}
		docs = append(docs, doc)
		scores = append(scores, res.Similarity)
	}
	return docs, scores, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *ChromemStore) Reset(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.collectionName); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", s.collectionName, err)
	}
	collection, err := s.db.GetOrCreateCollection(s.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to recreate collection %s: %w", s.collectionName, err)
	}
	s.collection = collection
	return nil
}

func toChromemDocument(doc *types.Document, embedding []float32) (chromem.Document, error) {
	if doc.Content == "" {
		return chromem.Document{}, fmt.Errorf("refusing to index empty document content")
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := doc.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	metadata := map[string]string{
		"title":     doc.Metadata.Title,
		"source":    doc.Metadata.Source,
		"tags":      strings.Join(doc.Metadata.Tags, ","),
		"createdAt": fmt.Sprintf("%d", createdAt),
	}
	for k, v := range doc.Metadata.Custom {
		metadata["custom:"+k] = v
	}
	return chromem.Document{
		ID:        id,
		Content:   doc.Content,
		Metadata:  metadata,
		Embedding: embedding,
	}, nil
}

func fromChromemResult(res chromem.Result) types.Document {
	doc := types.Document{
		ID:      res.ID,
		Content: res.Content,
		Metadata: types.Metadata{
			Title:  res.Metadata["title"],
			Source: res.Metadata["source"],
			Custom: map[string]string{},
		},
	}
	if tags := res.Metadata["tags"]; tags != "" {
		doc.Metadata.Tags = strings.Split(tags, ",")
	}
	for k, v := range res.Metadata {
		if strings.HasPrefix(k, "custom:") {
			doc.Metadata.Custom[strings.TrimPrefix(k, "custom:")] = v
		}
	}
	if createdAt := res.Metadata["createdAt"]; createdAt != "" {
		fmt.Sscanf(createdAt, "%d", &doc.CreatedAt)
	}
	doc.Metadata.Custom["score"] = fmt.Sprintf("%f", res.Similarity)
	return doc
}

func hasAnyTag(docTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range docTags {
			if t == w {
				return true
			}
		}
	}
	return false
}
