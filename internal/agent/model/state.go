package model

import (
	"github.com/cloudwego/eino/schema"
)

// ChatState stores per-invocation state for the Eino graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Each request gets its own ChatState; nothing here is shared across
//     concurrent requests.
type ChatState struct {
	SessionID string
	Query     string

	// History is append-only within one graph run: nodes add their output,
	// nothing edits or removes prior entries.
	History []*schema.Message

	// Route is set once by the route parser post-handler and read by the
	// branch condition and by assembler nodes.
	Route *RouteDecision

	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int // local sequence to synthesize tool_call_id when the provider omits it

	// Accumulated total LLM cost (USD) across model invocations for this query.
	TotalCostUSD float64
}

// QueryInput is the public input for processing one user turn.
type QueryInput struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// ChatResult is what the graph runner hands back to the calling layer.
type ChatResult struct {
	Response         string    `json:"response"`
	RoutedAgent      AgentKind `json:"agent_type"`
	Reasoning        string    `json:"-"`
	ToolLimitReached bool      `json:"tool_limit_reached,omitempty"`
	TotalCostUSD     float64   `json:"-"`
}
