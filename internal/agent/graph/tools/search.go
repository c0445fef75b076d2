package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

// NoResultsMessage is returned when the provider finds nothing relevant.
const NoResultsMessage = "No relevant information found."

const snippetMaxLen = 200

type SearchConfig struct {
	APIKey     string `envconfig:"TAVILY_API_KEY"`
	Endpoint   string `envconfig:"TAVILY_ENDPOINT" default:"https://api.tavily.com/search"`
	MaxResults int    `envconfig:"SEARCH_MAX_RESULTS" default:"3"`
	Timeout    int    `envconfig:"SEARCH_TIMEOUT" default:"15"`
}

// SearchClient is a thin client for the Tavily search API.
// Stateless after construction; safe to share across requests.
type SearchClient struct {
	cfg    SearchConfig
	client *http.Client
}

func NewSearchClient(cfg SearchConfig) *SearchClient {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SearchClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search runs a query against the provider and returns the raw results.
func (c *SearchClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:      c.cfg.APIKey,
		Query:       query,
		MaxResults:  c.cfg.MaxResults,
		SearchDepth: "advanced",
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}

type SearchWebInput struct {
	Query string `json:"query"`
}

// NewSearchWebTool wraps a SearchClient as an agent tool. Provider failures
// are folded into the result string so the agent can recover conversationally.
func NewSearchWebTool(client *SearchClient) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchWeb,
			Desc: "Search the web for up-to-date information. Use this whenever the user asks about current events, live data, or facts you cannot answer from memory. Returns a digest of the top results with title, source URL, and a snippet.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Search keywords. Keep it short and specific, e.g. 'Tokyo weather today' or 'latest Go release'.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *SearchWebInput) (string, error) {
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return "Search failed: empty query.", nil
			}

			results, err := client.Search(ctx, query)
			if err != nil {
				logx.Warn().Err(err).Str("query", query).Msg("Web search failed")
				return fmt.Sprintf("Search failed: %v", err), nil
			}
			return FormatResults(results), nil
		},
	)
}

// FormatResults renders a numbered digest of search results for the model.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return NoResultsMessage
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := r.Title
		if title == "" {
			title = "No title"
		}
		url := r.URL
		if url == "" {
			url = "N/A"
		}
		fmt.Fprintf(&b, "%d. %s\n   Source: %s\n   Summary: %s", i+1, title, url, truncate(r.Content, snippetMaxLen))
	}
	return b.String()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "No content"
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
