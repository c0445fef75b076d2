package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
)

func TestParseRouteDecision_ValidReplies(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantNext  model.AgentKind
		wantWords string
	}{
		{
			name:      "plain json",
			content:   `{"next": "researcher", "reasoning": "needs current data"}`,
			wantNext:  model.AgentResearcher,
			wantWords: "needs current data",
		},
		{
			name:      "fenced json",
			content:   "```json\n{\"next\": \"coder\", \"reasoning\": \"compute something\"}\n```",
			wantNext:  model.AgentCoder,
			wantWords: "compute something",
		},
		{
			name:      "bare fence",
			content:   "```\n{\"next\": \"general_assistant\", \"reasoning\": \"small talk\"}\n```",
			wantNext:  model.AgentGeneral,
			wantWords: "small talk",
		},
		{
			name:     "surrounding prose",
			content:  `Sure, here is the decision: {"next": "coder", "reasoning": "math"} hope that helps`,
			wantNext: model.AgentCoder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseRouteDecision(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, d.Next)
			if tt.wantWords != "" {
				assert.Equal(t, tt.wantWords, d.Reasoning)
			}
		})
	}
}

func TestParseRouteDecision_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown agent", `{"next": "poet", "reasoning": "sounds artistic"}`},
		{"missing next", `{"reasoning": "no target"}`},
		{"empty next", `{"next": "", "reasoning": "blank"}`},
		{"not json", "I will route this to the researcher."},
		{"empty reply", ""},
		{"broken json", `{"next": "coder",`},
		{"oversized reply", `{"next":"coder"}` + strings.Repeat("x", 40*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseRouteDecision(tt.content)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, errx.ErrRouteParse)
		})
	}
}

func TestParseRouteDecision_NoFallbackRoute(t *testing.T) {
	// A near-miss must never be coerced to a default agent.
	d, err := ParseRouteDecision(`{"next": "general", "reasoning": "close but wrong"}`)
	require.Error(t, err)
	assert.Nil(t, d)
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSONObject("prefix {\"a\":1} suffix"))
	assert.Equal(t, `{"a":1}`, extractJSONObject("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "", extractJSONObject("no braces here"))
	assert.Equal(t, "", extractJSONObject("} reversed {"))
}
