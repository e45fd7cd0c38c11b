package service

import (
	"context"
	"fmt"
	"strings"

	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Searcher runs an internet search and formats the hits for a model to read.
type Searcher interface {
	SearchFormatted(ctx context.Context, query string) (string, error)
}

// SearchResult represents a single search result
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchService handles Google Custom Search operations
type SearchService struct {
	apiKey     string
	engineID   string
	maxResults int64
}

func NewSearchService(apiKey, engineID string, maxResults int) *SearchService {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &SearchService{
		apiKey:     apiKey,
		engineID:   engineID,
		maxResults: int64(maxResults),
	}
}

func (s *SearchService) Search(ctx context.Context, query string) ([]SearchResult, error) {
	opts := []option.ClientOption{}
	if s.apiKey != "" {
		opts = append(opts, option.WithAPIKey(s.apiKey))
	}
	searchService, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	search := searchService.Cse.List()
	search.Q(query)
	search.Cx(s.engineID)
	search.Num(s.maxResults)

	result, err := search.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	searchResults := make([]SearchResult, 0, len(result.Items))
	for _, item := range result.Items {
		searchResults = append(searchResults, SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}

	return searchResults, nil
}

// SearchFormatted returns results as one "- title: snippet" line per hit,
// the shape the planner personas expect as tool output.
func (s *SearchService) SearchFormatted(ctx context.Context, query string) (string, error) {
	results, err := s.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}
	lines := make([]string, 0, len(results))
	for _, result := range results {
		lines = append(lines, fmt.Sprintf("- %s: %s", result.Title, result.Snippet))
	}
	return strings.Join(lines, "\n"), nil
}
