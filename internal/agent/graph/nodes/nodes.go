package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/conversations"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/parsers"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/prompts"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

// Node keys for the chat graph.
const (
	NodeInputConverter      = "input_converter"
	NodeRouterChatModel     = "router_model"
	NodeRouteParser         = "route_parser"
	NodeResearcherAssembler = "researcher_assembler"
	NodeCoderAssembler      = "coder_assembler"
	NodeGeneralAssembler    = "general_assembler"
	NodeResearcherChatModel = "researcher_model"
	NodeCoderChatModel      = "coder_model"
	NodeGeneralChatModel    = "general_model"
	NodeResearcherTools     = "researcher_tools"
	NodeCoderTools          = "coder_tools"
)

// RouteRecorder receives routing decisions for audit purposes, keyed by the
// session correlation id. Recording is best-effort: failures are logged, they
// never fail the turn.
type RouteRecorder interface {
	RecordRoute(ctx context.Context, sessionID, userMessage, routedTo, reasoning string) error
}

// NewInputConverterPreHandler resets per-query state before a new turn runs.
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.ChatState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.ChatState) (model.QueryInput, error) {
		s.SessionID = in.SessionID
		s.Query = in.Query
		s.Route = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode persists the user turn and builds the router context:
// the routing system prompt followed by the recent conversation history.
func NewInputConverterNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		history, err := mm.ProcessUserMessage(ctx, input.SessionID, input.Query)
		if err != nil {
			return nil, fmt.Errorf("process user message: %w", err)
		}

		systemPrompt, err := prompts.RenderRouterSystem(ctx)
		if err != nil {
			return nil, fmt.Errorf("render router system prompt: %w", err)
		}

		messages := make([]*schema.Message, 0, len(history)+1)
		messages = append(messages, schema.SystemMessage(systemPrompt))
		messages = append(messages, history...)

		return messages, nil
	})
}

// NewRouterChatModelPostHandler accounts usage cost for the routing call. The
// router's reply is a control message: it is parsed for the branch decision
// but never appended to the conversation history.
func NewRouterChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.ChatState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.ChatState) (*schema.Message, error) {
		recordUsage(state, out, NodeRouterChatModel, modelName)
		return out, nil
	}
}

// NewRouteParserNode decodes the router reply into a RouteDecision. A reply
// that does not fit the closed enumeration fails the turn.
func NewRouteParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.RouteDecision, error) {
		decision, err := parsers.ParseRouteDecision(resp.Content)
		if err != nil {
			logx.Error().Err(err).Msg("Error parsing route decision")
			return model.RouteDecision{}, err
		}
		return *decision, nil
	})
}

// NewRouteParserPostHandler saves the decision into state and surfaces the
// router's reasoning to the audit sink.
func NewRouteParserPostHandler(recorder RouteRecorder) func(context.Context, model.RouteDecision, *model.ChatState) (model.RouteDecision, error) {
	return func(ctx context.Context, out model.RouteDecision, state *model.ChatState) (model.RouteDecision, error) {
		d := out
		state.Route = &d

		logx.Info().
			Str("session_id", state.SessionID).
			Str("routed_to", out.Next.String()).
			Str("reasoning", out.Reasoning).
			Msg("Route decision")

		if recorder != nil {
			if err := recorder.RecordRoute(ctx, state.SessionID, state.Query, out.Next.String(), out.Reasoning); err != nil {
				logx.Warn().Err(err).Str("session_id", state.SessionID).Msg("Failed to record route decision")
			}
		}
		return out, nil
	}
}

// NewRouteCondition dispatches on the router's decision. The enumeration is
// closed upstream, so an unknown value here means the graph is misconfigured.
func NewRouteCondition() func(context.Context, model.RouteDecision) (string, error) {
	return func(ctx context.Context, input model.RouteDecision) (string, error) {
		switch input.Next {
		case model.AgentResearcher:
			return NodeResearcherAssembler, nil
		case model.AgentCoder:
			return NodeCoderAssembler, nil
		case model.AgentGeneral:
			return NodeGeneralAssembler, nil
		default:
			return "", fmt.Errorf("no branch for agent %q", input.Next)
		}
	}
}

// NewAgentAssemblerNode builds the specialist agent's model context: its
// system prompt followed by the session's conversation history.
func NewAgentAssemblerNode(mm *conversations.MessagesManager, kind model.AgentKind) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.RouteDecision) ([]*schema.Message, error) {
		var sessionID string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.ChatState) error {
			sessionID = state.SessionID
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderAgentSystem(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("render agent system prompt: %w", err)
		}

		messages, err := mm.BuildContext(ctx, sessionID, systemPrompt)
		if err != nil {
			return nil, fmt.Errorf("build agent context: %w", err)
		}

		return messages, nil
	})
}

// NewAgentChatModelPreHandler appends the incoming messages to the run
// history and replays the full history to the model. When the tool-call limit
// has been reached a wrap-up notice is injected so the model produces a final
// answer from what it already gathered.
func NewAgentChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.ChatState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.ChatState) ([]*schema.Message, error) {
		// Some providers (Gemini OpenAI-compat) omit tool_call_id on tool
		// results; recover it from the requesting assistant message.
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					if id := strings.TrimSpace(msg.ToolCalls[0].ID); id != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Please synthesize a helpful response using the information you've already gathered. "+
						"Acknowledge any limitations in your response if you couldn't complete all necessary tool calls.",
					maxToolCalls,
				),
			}
			state.History = append(state.History, wrapUp)
		}

		return state.History, nil
	}
}

// NewAgentChatModelPostHandler accounts cost, normalizes tool-call ids,
// appends the reply to the run history, and persists the final assistant
// answer. The final reply also carries the routing metadata the calling layer
// reads from message Extra.
func NewAgentChatModelPostHandler(
	mm *conversations.MessagesManager,
	node string,
	modelName string,
) func(context.Context, *schema.Message, *model.ChatState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.ChatState) (*schema.Message, error) {
		recordUsage(state, out, node, modelName)

		// Synthesize tool_call ids when the provider omits them so each
		// request can be matched with exactly one result message.
		if out != nil && len(out.ToolCalls) > 0 {
			for i := range out.ToolCalls {
				if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
					state.ToolCallIDSeq++
					out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
				}
			}
		}

		state.History = append(state.History, out)

		// With the limit flagged the branch goes to END even if the model
		// still asked for tools, so this reply is final either way.
		if len(out.ToolCalls) > 0 && !state.ToolCallLimitReached {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
			return out, nil
		}

		// Final reply for this turn: persist it and attach routing metadata.
		if out.Role == schema.Assistant && strings.TrimSpace(out.Content) != "" {
			if err := mm.SaveResponse(ctx, state.SessionID, out.Content); err != nil {
				logx.Error().
					Str("session_id", state.SessionID).
					Err(err).
					Msg("Error saving assistant response")
			}
		}

		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		if state.Route != nil {
			out.Extra["routed_agent"] = state.Route.Next.String()
			out.Extra["route_reasoning"] = state.Route.Reasoning
		}
		out.Extra["tool_limit_reached"] = state.ToolCallLimitReached

		return out, nil
	}
}

// NewToolExecutorCondition routes an agent reply either to its tools node or
// to the end of the graph.
func NewToolExecutorCondition(toolsNode string) func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.ChatState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if limitReached {
			logx.Debug().Msg("Tool limit reached previously - routing to end")
			return compose.END, nil
		}

		if len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Str("tools_node", toolsNode).Msg("Routing to tool executor")
			return toolsNode, nil
		}

		return compose.END, nil
	}
}

// NewToolExecutorPreHandler bumps the per-turn tool call counter before the
// tools node runs.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.ChatState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.ChatState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("session_id", state.SessionID).
			Msg("Tool execution attempt")

		if exceeded {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("session_id", state.SessionID).
				Msg("Tool call limit exceeded - flagging and continuing")
		}

		return in, nil
	}
}
