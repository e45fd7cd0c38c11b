package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai/jsonschema"

	"doc-assistant/types"
)

const plannerInstructions = `You are a creative travel planner with great taste.
Design personalized itineraries that balance fun, rest, food, and adventure.

Guidelines:
- Think like a human who loves to explore, not an algorithm.
- Respect the user's budget, duration, and interests.
- Keep a logical flow: minimize travel time, include meals and downtime.
- Use descriptive language ("Start your morning with a croissant at a quiet cafe...").
- Output should be structured clearly by day or activity group.

Goal: A plan that feels handcrafted. Smart, realistic, and full of life.`

const reviewerInstructions = `You are a friendly, experienced travel reviewer.
Your role is to read the travel plan, verify it is realistic, safe, and logistically sound, and make it feel inspiring.

Steps:
1. Validate all recommendations (destinations, hotels, attractions, timing).
2. Ensure the budget, season, and travel flow make sense.
3. Use your natural writing voice, helpful and creative, like a well-traveled friend.
4. If something doesn't add up, fix it kindly and explain why.
5. Keep the final output structured by days or themes.

Goal: A polished, reliable, and exciting plan that the user would love to follow.`

const planTrace = "Planner Agent -> Reviewer Agent"

// toolTrace collects tool events for a single plan request. It travels
// through the context so the registered tool handler can find it.
type toolTrace struct {
	mu     sync.Mutex
	events []types.ToolEvent
}

func (t *toolTrace) record(event types.ToolEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *toolTrace) Events() []types.ToolEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := make([]types.ToolEvent, len(t.events))
	copy(events, t.events)
	return events
}

type toolTraceKey struct{}

func withToolTrace(ctx context.Context, trace *toolTrace) context.Context {
	return context.WithValue(ctx, toolTraceKey{}, trace)
}

func traceFromContext(ctx context.Context) *toolTrace {
	trace, _ := ctx.Value(toolTraceKey{}).(*toolTrace)
	return trace
}

// PlannerService runs the fixed two-step itinerary pipeline: the Planner
// persona drafts, the Reviewer persona refines the draft. Only the
// Reviewer carries the internet_search tool.
type PlannerService struct {
	planner  AIService
	reviewer AIService
	search   Searcher
}

func NewPlannerService(planner, reviewer AIService, search Searcher) (*PlannerService, error) {
	s := &PlannerService{
		planner:  planner,
		reviewer: reviewer,
		search:   search,
	}

	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"query": {
				Type:        jsonschema.String,
				Description: "The search query",
			},
		},
		Required: []string{"query"},
	}
	if err := reviewer.RegisterFunctionCall(
		"internet_search",
		"Search the internet for up-to-date information about destinations, hotels, attractions, and prices.",
		params,
		s.handleInternetSearch,
	); err != nil {
		return nil, fmt.Errorf("failed to register internet_search tool: %w", err)
	}

	return s, nil
}

// CreatePlan produces a reviewed itinerary for the given request.
func (s *PlannerService) CreatePlan(ctx context.Context, request string) (*types.PlanResponse, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, fmt.Errorf("request must not be empty")
	}

	trace := &toolTrace{}
	ctx = withToolTrace(ctx, trace)

	draft, err := s.planner.Chat(ctx, plannerInstructions, []types.Message{
		{Role: types.RoleUser, Content: request},
	})
	if err != nil {
		return nil, fmt.Errorf("planner step failed: %w", err)
	}

	reviewed, err := s.reviewer.Chat(ctx, reviewerInstructions, []types.Message{
		{Role: types.RoleUser, Content: draft.Content},
	})
	if err != nil {
		return nil, fmt.Errorf("reviewer step failed: %w", err)
	}

	return &types.PlanResponse{
		Plan:       reviewed.Content,
		Draft:      draft.Content,
		Trace:      planTrace,
		ToolEvents: trace.Events(),
	}, nil
}

type internetSearchArgs struct {
	Query string `json:"query"`
}

// handleInternetSearch is the tool handler exposed to the Reviewer. Errors
// come back as readable tool output so the model can carry on without the
// search results.
func (s *PlannerService) handleInternetSearch(ctx context.Context, args []byte) (any, error) {
	trace := traceFromContext(ctx)
	record := func(event types.ToolEvent) {
		event.Tool = "internet_search"
		if trace != nil {
			trace.record(event)
		}
	}
	defer record(types.ToolEvent{Type: types.ToolEventEnd})

	var searchArgs internetSearchArgs
	if err := json.Unmarshal(args, &searchArgs); err != nil {
		record(types.ToolEvent{Type: types.ToolEventError, Error: "invalid arguments"})
		return "Search error: invalid arguments.", nil
	}

	record(types.ToolEvent{Type: types.ToolEventCall, Args: redactForLogs(searchArgs.Query)})

	output, err := s.search.SearchFormatted(ctx, searchArgs.Query)
	if err != nil {
		log.Error().Err(err).Msg("internet_search tool failed")
		record(types.ToolEvent{Type: types.ToolEventError, Error: err.Error()})
		return fmt.Sprintf("Search error: %v", err), nil
	}

	record(types.ToolEvent{Type: types.ToolEventResult, Preview: preview(output, 400)})
	return output, nil
}

// redactForLogs hides values that look like credentials and truncates
// anything long enough to flood the trace.
func redactForLogs(value string) string {
	low := strings.ToLower(value)
	for _, needle := range []string{"api_key", "token", "secret", "password"} {
		if strings.Contains(low, needle) {
			return "[redacted]"
		}
	}
	if len(value) > 300 {
		return value[:120] + "... [truncated]"
	}
	return value
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
