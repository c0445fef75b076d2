package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/tools"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
)

//go:embed template/researcher_prompt.txt
var researcherSystemPrompt string

//go:embed template/coder_prompt.txt
var coderSystemPrompt string

//go:embed template/general_prompt.txt
var generalSystemPrompt string

// RenderAgentSystem renders the system prompt for the given specialist agent.
func RenderAgentSystem(ctx context.Context, kind model.AgentKind) (string, error) {
	var raw string
	vars := map[string]any{}
	switch kind {
	case model.AgentResearcher:
		raw = researcherSystemPrompt
		vars["SearchTool"] = tools.ToolSearchWeb
	case model.AgentCoder:
		raw = coderSystemPrompt
		vars["CodeTool"] = tools.ToolExecutePython
	case model.AgentGeneral:
		raw = generalSystemPrompt
	default:
		return "", fmt.Errorf("no system prompt for agent %q", kind)
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(raw),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("agent prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("agent prompt render: empty result")
	}
	return msgs[0].Content, nil
}
