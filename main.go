package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/tools"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/repo"
	"github.com/JoLiu-ai/agentic-chat/internal/api"
	"github.com/JoLiu-ai/agentic-chat/internal/core"
	"github.com/JoLiu-ai/agentic-chat/internal/knowledge"
	"github.com/JoLiu-ai/agentic-chat/internal/store"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
	pkgpostgres "github.com/JoLiu-ai/agentic-chat/pkg/postgres"
	pkgredis "github.com/JoLiu-ai/agentic-chat/pkg/redis"
)

// AppConfig defines all configurable parameters for the chat backend,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres pkgpostgres.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Router       model.RouterModelConfig
	Agent        model.AgentModelConfig
	Conversation model.ConversationConfig

	// Tools
	Search  tools.SearchConfig
	Sandbox tools.SandboxConfig

	// Knowledge ingestion
	Splitter knowledge.SplitterConfig
	Embedder knowledge.EmbedderConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	if err := store.Migrate(cfg.Postgres.URL); err != nil {
		logx.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	pool, err := cfg.Postgres.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Postgres pool")
	}
	defer pool.Close()

	st := store.New(pool)

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Str("ttl", cfg.Conversation.TTL).Err(err).Msg("Invalid CONVERSATION_TTL")
	}

	runner, err := graph.BuildChatGraph(ctx, graph.Config{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		RouterModel:      cfg.Router,
		AgentModel:       cfg.Agent,
		Conversation:     cfg.Conversation,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, ttl),
		RouteRecorder:    st,
		Search:           cfg.Search,
		Sandbox:          cfg.Sandbox,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build chat graph")
	}

	genaiCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		genaiCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	genaiClient, err := genai.NewClient(ctx, genaiCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	ks := knowledge.NewStore(pool,
		knowledge.NewGeminiEmbedder(genaiClient, cfg.Embedder),
		knowledge.NewSplitter(cfg.Splitter))

	srv, err := api.NewServer(api.ServerConfig{
		Addr:           cfg.HTTPAddr,
		AgentModelName: cfg.Agent.Model,
		Runner:         runner,
		Store:          st,
		Knowledge:      ks,
		Pool:           pool,
		Redis:          rdb,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build API server")
	}

	if err := srv.Run(ctx); err != nil {
		logx.Fatal().Err(err).Msg("HTTP server failed")
	}
}
