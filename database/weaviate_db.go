package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"doc-assistant/config"
	"doc-assistant/types"
)

const BATCH_SIZE = 200

var (
	DOCUMENT_CLASS        = "DocumentChunk"
	DOCUMENT_CLASS_OBJECT = &models.Class{
		Class: DOCUMENT_CLASS,
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "tags", DataType: []string{"text[]"}},
			{Name: "custom", DataType: []string{"object"},
				NestedProperties: []*models.NestedProperty{
					{Name: "page", DataType: []string{"text"}},
				},
			},
			{Name: "createdAt", DataType: []string{"int"}},
		},
		// embeddings are computed client side and attached to every object
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
	}
)

type WeaviateStore struct {
	client *weaviate.Client
}

func NewWeaviateStore(cfg config.WeaviateStoreConfig) (*WeaviateStore, error) {
	var scheme string
	if strings.Contains(cfg.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(cfg.Host, scheme+"://")
	clientCfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		clientCfg.AuthConfig = auth.ApiKey{
			Value: cfg.APIKey,
		}
		clientCfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	schema, err := client.Schema().Getter().Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}

	hasDocumentClass := false
	for _, class := range schema.Classes {
		if class.Class == DOCUMENT_CLASS {
			hasDocumentClass = true
			break
		}
	}
	if !hasDocumentClass {
		err = client.Schema().ClassCreator().WithClass(DOCUMENT_CLASS_OBJECT).Do(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to create %s class: %w", DOCUMENT_CLASS, err)
		}
	}
	return &WeaviateStore{
		client: client,
	}, nil
}

func (s *WeaviateStore) UpsertDocument(ctx context.Context, doc *types.Document, embedding []float32) error {
	creator := s.client.Data().Creator().
		WithClassName(DOCUMENT_CLASS).
		WithProperties(documentProperties(doc))

	if embedding != nil {
		creator = creator.WithVector(embedding)
	}

	if _, err := creator.Do(ctx); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (s *WeaviateStore) BatchInsertDocuments(ctx context.Context, docs []types.Document, embeddings [][]float32) error {
	total := len(docs)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			obj := &models.Object{
				Class:      DOCUMENT_CLASS,
				Properties: documentProperties(&docs[j]),
			}
			if embeddings != nil && j < len(embeddings) {
				obj.Vector = embeddings[j]
			}
			batcher = batcher.WithObjects(obj)
		}

		if _, err := batcher.Do(ctx); err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

func (s *WeaviateStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]types.Document, []float32, error) {
	return s.SearchSimilarWithMetadata(ctx, embedding, types.Metadata{}, limit)
}

func (s *WeaviateStore) SearchSimilarWithMetadata(ctx context.Context, embedding []float32, metadata types.Metadata, limit int) ([]types.Document, []float32, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "title"},
		{Name: "source"},
		{Name: "tags"},
		{Name: "custom", Fields: []graphql.Field{{Name: "page"}}},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}, {Name: "id"}}},
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(embedding)
	where := buildMetadataFilter(metadata)

	getBuilder := s.client.GraphQL().Get().
		WithClassName(DOCUMENT_CLASS).
		WithFields(fields...).
		WithNearVector(nearVector)
	if limit > 0 {
		getBuilder = getBuilder.WithLimit(limit)
	}
	if where != nil {
		getBuilder = getBuilder.WithWhere(where)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, nil, err
	}
	if result.Errors != nil {
		return nil, nil, fmt.Errorf("search failed: %v", result.Errors[0].Message)
	}

	var docs []types.Document
	var distances []float32

	if data, ok := result.Data["Get"].(map[string]interface{})[DOCUMENT_CLASS].([]interface{}); ok {
		for _, item := range data {
			if raw, ok := item.(map[string]interface{}); ok {
				document := parseDocument(raw)
				if additional, ok := raw["_additional"].(map[string]interface{}); ok {
					if id, ok := additional["id"].(string); ok {
						document.ID = id
					}
					if distance, ok := additional["distance"].(float64); ok {
						distances = append(distances, float32(distance))
						document.Metadata.Custom["distance"] = fmt.Sprintf("%f", distance)
					}
				}
				docs = append(docs, document)
			}
		}
	}

	return docs, distances, nil
}

func (s *WeaviateStore) Count(ctx context.Context) (int, error) {
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(DOCUMENT_CLASS).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	if result.Errors != nil {
		return 0, fmt.Errorf("count query failed: %v", result.Errors[0].Message)
	}
	if data, ok := result.Data["Aggregate"].(map[string]interface{})[DOCUMENT_CLASS].([]interface{}); ok && len(data) > 0 {
		if meta, ok := data[0].(map[string]interface{})["meta"].(map[string]interface{}); ok {
			if count, ok := meta["count"].(float64); ok {
				return int(count), nil
			}
		}
	}
	return 0, nil
}

func (s *WeaviateStore) Reset(ctx context.Context) error {
	err := s.client.Schema().ClassDeleter().WithClassName(DOCUMENT_CLASS).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s class: %w", DOCUMENT_CLASS, err)
	}

	err = s.client.Schema().ClassCreator().WithClass(DOCUMENT_CLASS_OBJECT).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create %s class: %w", DOCUMENT_CLASS, err)
	}
	return nil
}

func documentProperties(doc *types.Document) map[string]interface{} {
	createdAt := doc.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	return map[string]interface{}{
		"content":   doc.Content,
		"title":     doc.Metadata.Title,
		"source":    doc.Metadata.Source,
		"tags":      doc.Metadata.Tags,
		"custom":    doc.Metadata.Custom,
		"createdAt": createdAt,
	}
}

func parseDocument(raw map[string]interface{}) types.Document {
	document := types.Document{
		Metadata: types.Metadata{
			Tags:   parseStringArray(raw["tags"]),
			Custom: parseStringMap(raw["custom"]),
		},
	}
	if content, ok := raw["content"].(string); ok {
		document.Content = content
	}
	if title, ok := raw["title"].(string); ok {
		document.Metadata.Title = title
	}
	if source, ok := raw["source"].(string); ok {
		document.Metadata.Source = source
	}
	if createdAt, ok := raw["createdAt"].(float64); ok {
		document.CreatedAt = int64(createdAt)
	}
	if document.Metadata.Custom == nil {
		document.Metadata.Custom = map[string]string{}
	}
	return document
}

// Helper functions
func parseStringArray(v interface{}) []string {
	if v == nil {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func parseStringMap(v interface{}) map[string]string {
	if v == nil {
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	result := make(map[string]string)
	for k, val := range m {
		if s, ok := val.(string); ok {
			result[k] = s
		}
	}
	return result
}

func buildMetadataFilter(metadata types.Metadata) *filters.WhereBuilder {
	var whereFilter *filters.WhereBuilder

	if metadata.Title != "" {
		whereFilter = filters.Where().WithPath([]string{"title"}).
			WithOperator(filters.Equal).
			WithValueString(metadata.Title)
	}

	if metadata.Source != "" {
		sourceFilter := filters.Where().
			WithPath([]string{"source"}).
			WithOperator(filters.Equal).
			WithValueString(metadata.Source)
		if whereFilter == nil {
			whereFilter = sourceFilter
		} else {
			whereFilter = whereFilter.WithOperator(filters.And).WithOperands([]*filters.WhereBuilder{sourceFilter})
		}
	}

	if len(metadata.Tags) > 0 {
		for _, tag := range metadata.Tags {
			tagFilter := filters.Where().
				WithPath([]string{"tags"}).
				WithOperator(filters.ContainsAny).
				WithValueString(tag)
			if whereFilter == nil {
				whereFilter = tagFilter
			} else {
				whereFilter = whereFilter.WithOperator(filters.And).WithOperands([]*filters.WhereBuilder{tagFilter})
			}
		}
	}

	if len(metadata.Custom) > 0 {
		for key, value := range metadata.Custom {
			customFilter := filters.Where().
				WithPath([]string{"custom", key}).
				WithOperator(filters.Equal).
				WithValueString(value)
			if whereFilter == nil {
				whereFilter = customFilter
			} else {
				whereFilter = whereFilter.WithOperator(filters.And).WithOperands([]*filters.WhereBuilder{customFilter})
			}
		}
	}

	return whereFilter
}
