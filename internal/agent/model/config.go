package model

// ================ Config ================

type ConversationConfig struct {
	TTL     string `envconfig:"CONVERSATION_TTL" default:"15m"`
	History struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"20"`
	}
	Tools struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

// RouterModelConfig drives the structured routing call. Temperature stays low
// so the classification is stable.
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.0"`
}

// AgentModelConfig is shared by the specialist agents (researcher, coder,
// general assistant). Each agent differs only in system prompt and tool set.
type AgentModelConfig struct {
	Model       string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0.4"`
}
