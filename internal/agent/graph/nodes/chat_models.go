package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey       string
	BaseURL      string
	RouterConfig *model.RouterModelConfig
	AgentConfig  *model.AgentModelConfig
}

// ChatModels holds the router model and the per-agent specialist models.
// Researcher and Coder get their own instances because each binds a
// different tool set; General stays tool-free.
type ChatModels struct {
	Router          *gemini.ChatModel
	Researcher      *gemini.ChatModel
	Coder           *gemini.ChatModel
	General         *gemini.ChatModel
	RouterModelName string
	AgentModelName  string
}

// NewChatModels creates the router and agent chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// Router is a classification call: low temperature, no thinking budget.
	chatModelRouter, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RouterConfig.Model,
		Temperature: &config.RouterConfig.Temperature,
		MaxTokens:   &config.RouterConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating router model")
		return nil, fmt.Errorf("error creating router model: %w", err)
	}

	newAgentModel := func(name string) (*gemini.ChatModel, error) {
		m, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       config.AgentConfig.Model,
			Temperature: &config.AgentConfig.Temperature,
			MaxTokens:   &config.AgentConfig.MaxTokens,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: true,
				ThinkingBudget:  genai.Ptr(int32(2000)),
			},
		})
		if err != nil {
			logx.Error().Err(err).Str("agent", name).Msg("Error creating agent model")
			return nil, fmt.Errorf("error creating %s model: %w", name, err)
		}
		return m, nil
	}

	chatModelResearcher, err := newAgentModel(model.AgentResearcher.String())
	if err != nil {
		return nil, err
	}
	chatModelCoder, err := newAgentModel(model.AgentCoder.String())
	if err != nil {
		return nil, err
	}
	chatModelGeneral, err := newAgentModel(model.AgentGeneral.String())
	if err != nil {
		return nil, err
	}

	return &ChatModels{
		Router:          chatModelRouter,
		Researcher:      chatModelResearcher,
		Coder:           chatModelCoder,
		General:         chatModelGeneral,
		RouterModelName: config.RouterConfig.Model,
		AgentModelName:  config.AgentConfig.Model,
	}, nil
}

// BindResearcherTools binds the web search tool set to the researcher model
func (cm *ChatModels) BindResearcherTools(ctx context.Context, tools []*schema.ToolInfo) error {
	if err := cm.Researcher.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind researcher tools")
		return fmt.Errorf("failed to bind researcher tools: %w", err)
	}
	logx.Debug().Msg("Successfully bound tools to researcher model")
	return nil
}

// BindCoderTools binds the code execution tool set to the coder model
func (cm *ChatModels) BindCoderTools(ctx context.Context, tools []*schema.ToolInfo) error {
	if err := cm.Coder.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind coder tools")
		return fmt.Errorf("failed to bind coder tools: %w", err)
	}
	logx.Debug().Msg("Successfully bound tools to coder model")
	return nil
}
