// Package tools holds the side-effecting capabilities the specialist agents
// can ask the model to use. Every tool follows the same contract: a unique
// name, a natural-language description the model routes on, and a
// string-shaped result. Tool failures are reported inside the result string,
// never as Go errors, so the calling agent can react conversationally.
package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const (
	ToolSearchWeb     = "search_web"
	ToolExecutePython = "execute_python"
)

// GetToolInfos resolves the schema infos for a tool set so they can be bound
// to a chat model.
func GetToolInfos(ctx context.Context, ts []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
