package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/conversations"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/nodes"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/observers"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/tools"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"

	einomodel "github.com/cloudwego/eino/components/model"
)

// Runner executes one conversational turn through the compiled graph.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.ChatResult, error)
}

// Config holds everything needed to compose the full chat graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs ChatModels,
// the business tools, and the MessagesManager.
type Config struct {
	APIKey           string
	BaseURL          string
	RouterModel      model.RouterModelConfig
	AgentModel       model.AgentModelConfig
	Conversation     model.ConversationConfig
	ConversationRepo model.ConversationRepository
	RouteRecorder    nodes.RouteRecorder
	Search           tools.SearchConfig
	Sandbox          tools.SandboxConfig
}

// GraphConfig holds all configuration needed to build the graph. Chat models
// are taken as interfaces so tests can substitute scripted models.
type GraphConfig struct {
	RouterModel     einomodel.BaseChatModel
	ResearcherModel einomodel.BaseChatModel
	CoderModel      einomodel.BaseChatModel
	GeneralModel    einomodel.BaseChatModel
	RouterModelName string
	AgentModelName  string
	ResearcherTools []tool.BaseTool
	CoderTools      []tool.BaseTool
	MessagesManager *conversations.MessagesManager
	RouteRecorder   nodes.RouteRecorder
	ToolMaxCalls    int
}

// GraphBuilder handles the construction of the agent conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.ChatResult, error) {
	out, err := r.runnable.Invoke(ctx, model.QueryInput{
		SessionID: in.SessionID,
		Query:     in.Query,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return &model.ChatResult{}, nil
	}
	return chatResultFromMessage(out), nil
}

// chatResultFromMessage lifts the metadata the post-handlers stuffed into the
// final message's Extra into the public result type.
func chatResultFromMessage(out *schema.Message) *model.ChatResult {
	res := &model.ChatResult{Response: out.Content}

	if v, ok := out.Extra["routed_agent"].(string); ok {
		if kind, err := model.ParseAgentKind(v); err == nil {
			res.RoutedAgent = kind
		}
	}
	if v, ok := out.Extra["route_reasoning"].(string); ok {
		res.Reasoning = v
	}
	if v, ok := out.Extra["tool_limit_reached"].(bool); ok {
		res.ToolLimitReached = v
	}
	if v, ok := out.Extra["usage_cost_total_usd"].(float64); ok {
		res.TotalCostUSD = v
	}
	return res
}

// BuildChatGraph composes ChatModels, tools, MessagesManager, builds the
// graph, and returns a Runner.
func BuildChatGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		RouterConfig: &cfg.RouterModel,
		AgentConfig:  &cfg.AgentModel,
	})
	if err != nil {
		return nil, err
	}

	searchTool := tools.NewSearchWebTool(tools.NewSearchClient(cfg.Search))
	codeTool := tools.NewExecutePythonTool(tools.NewPythonRunner(cfg.Sandbox), cfg.Sandbox)

	researcherTools := []tool.BaseTool{searchTool}
	coderTools := []tool.BaseTool{codeTool}

	researcherInfos, err := tools.GetToolInfos(ctx, researcherTools)
	if err != nil {
		return nil, fmt.Errorf("failed to get researcher tool infos: %w", err)
	}
	if err := cms.BindResearcherTools(ctx, researcherInfos); err != nil {
		return nil, err
	}

	coderInfos, err := tools.GetToolInfos(ctx, coderTools)
	if err != nil {
		return nil, fmt.Errorf("failed to get coder tool infos: %w", err)
	}
	if err := cms.BindCoderTools(ctx, coderInfos); err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		RouterModel:     cms.Router,
		ResearcherModel: cms.Researcher,
		CoderModel:      cms.Coder,
		GeneralModel:    cms.General,
		RouterModelName: cms.RouterModelName,
		AgentModelName:  cms.AgentModelName,
		ResearcherTools: researcherTools,
		CoderTools:      coderTools,
		MessagesManager: mm,
		RouteRecorder:   cfg.RouteRecorder,
		ToolMaxCalls:    cfg.Conversation.Tools.MaxCalls,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Chat graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled agent graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.RouterModel == nil || config.ResearcherModel == nil || config.CoderModel == nil || config.GeneralModel == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.ChatState {
				return &model.ChatState{}
			}),
		),
	}

	if err := builder.setupToolNodes(ctx); err != nil {
		return nil, err
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupToolNodes creates one tools node per tool-using agent. Researcher and
// coder carry disjoint tool sets, so each gets its own executor.
func (b *GraphBuilder) setupToolNodes(ctx context.Context) error {
	addToolsNode := func(nodeName string, agentTools []tool.BaseTool) error {
		toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
			Tools:               agentTools,
			ExecuteSequentially: true,
			UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
				// Gracefully handle hallucinated or malformed tool calls
				logx.Warn().
					Str("tool_name", name).
					Str("arguments", input).
					Msg("Unknown or invalid tool call; returning fallback result")
				return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
			},
			ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
				// Best-effort sanitize; never fail hard here
				var m map[string]any
				if err := json.Unmarshal([]byte(arguments), &m); err != nil {
					return arguments, nil
				}

				switch name {
				case tools.ToolSearchWeb:
					if v, ok := m["query"]; ok {
						switch vv := v.(type) {
						case string:
							m["query"] = strings.TrimSpace(vv)
						default:
							m["query"] = strings.TrimSpace(fmt.Sprint(v))
						}
					}
				case tools.ToolExecutePython:
					if v, ok := m["code"]; ok {
						if _, isString := v.(string); !isString {
							m["code"] = fmt.Sprint(v)
						}
					}
				}

				b, err := json.Marshal(m)
				if err != nil {
					return arguments, nil
				}
				return string(b), nil
			},
		})
		if err != nil {
			logx.Error().Err(err).Str("node", nodeName).Msg("Failed to create tools node")
			return fmt.Errorf("failed to create tools node %s: %w", nodeName, err)
		}

		b.graph.AddToolsNode(nodeName, toolsNode,
			compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
		)
		return nil
	}

	if err := addToolsNode(nodes.NodeResearcherTools, b.config.ResearcherTools); err != nil {
		return err
	}
	return addToolsNode(nodes.NodeCoderTools, b.config.CoderTools)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeRouterChatModel,
		b.config.RouterModel,
		compose.WithStatePostHandler(nodes.NewRouterChatModelPostHandler(b.config.RouterModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeRouteParser,
		nodes.NewRouteParserNode(),
		compose.WithStatePostHandler(nodes.NewRouteParserPostHandler(b.config.RouteRecorder)),
	)

	b.graph.AddLambdaNode(nodes.NodeResearcherAssembler,
		nodes.NewAgentAssemblerNode(b.config.MessagesManager, model.AgentResearcher),
	)
	b.graph.AddLambdaNode(nodes.NodeCoderAssembler,
		nodes.NewAgentAssemblerNode(b.config.MessagesManager, model.AgentCoder),
	)
	b.graph.AddLambdaNode(nodes.NodeGeneralAssembler,
		nodes.NewAgentAssemblerNode(b.config.MessagesManager, model.AgentGeneral),
	)

	b.graph.AddChatModelNode(nodes.NodeResearcherChatModel,
		b.config.ResearcherModel,
		compose.WithStatePreHandler(nodes.NewAgentChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewAgentChatModelPostHandler(b.config.MessagesManager, nodes.NodeResearcherChatModel, b.config.AgentModelName)),
	)
	b.graph.AddChatModelNode(nodes.NodeCoderChatModel,
		b.config.CoderModel,
		compose.WithStatePreHandler(nodes.NewAgentChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewAgentChatModelPostHandler(b.config.MessagesManager, nodes.NodeCoderChatModel, b.config.AgentModelName)),
	)
	b.graph.AddChatModelNode(nodes.NodeGeneralChatModel,
		b.config.GeneralModel,
		compose.WithStatePreHandler(nodes.NewAgentChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewAgentChatModelPostHandler(b.config.MessagesManager, nodes.NodeGeneralChatModel, b.config.AgentModelName)),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeRouterChatModel},
		{nodes.NodeRouterChatModel, nodes.NodeRouteParser},
		{nodes.NodeResearcherAssembler, nodes.NodeResearcherChatModel},
		{nodes.NodeCoderAssembler, nodes.NodeCoderChatModel},
		{nodes.NodeGeneralAssembler, nodes.NodeGeneralChatModel},
		{nodes.NodeGeneralChatModel, compose.END},
		{nodes.NodeResearcherTools, nodes.NodeResearcherChatModel},
		{nodes.NodeCoderTools, nodes.NodeCoderChatModel},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	routeBranch := compose.NewGraphBranch(
		nodes.NewRouteCondition(),
		map[string]bool{
			nodes.NodeResearcherAssembler: true,
			nodes.NodeCoderAssembler:      true,
			nodes.NodeGeneralAssembler:    true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRouteParser, routeBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding route branch")
		return fmt.Errorf("error adding route branch: %w", err)
	}

	researcherBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(nodes.NodeResearcherTools),
		map[string]bool{
			nodes.NodeResearcherTools: true,
			compose.END:               true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeResearcherChatModel, researcherBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding researcher tool branch")
		return fmt.Errorf("error adding researcher tool branch: %w", err)
	}

	coderBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(nodes.NodeCoderTools),
		map[string]bool{
			nodes.NodeCoderTools: true,
			compose.END:          true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeCoderChatModel, coderBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding coder tool branch")
		return fmt.Errorf("error adding coder tool branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	// Limit total run steps to avoid infinite loops in branching or tool retries
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
