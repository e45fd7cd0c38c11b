package types

const (
	ToolEventCall   = "call"
	ToolEventResult = "result"
	ToolEventError  = "error"
	ToolEventEnd    = "end"
)

// ToolEvent records one step of a tool invocation made while a plan
// was being reviewed. Argument values are redacted before they land here.
type ToolEvent struct {
	Type    string `json:"type"`
	Tool    string `json:"tool"`
	Args    string `json:"args,omitempty"`
	Preview string `json:"preview,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PlanRequest struct {
	Request string `json:"request"`
}

type PlanResponse struct {
	Plan       string      `json:"plan"`
	Draft      string      `json:"draft"`
	Trace      string      `json:"trace"`
	ToolEvents []ToolEvent `json:"tool_events,omitempty"`
}
