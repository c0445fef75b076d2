package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 32 * 1024 // a route decision is one small JSON object
	maxErrSnippet = 200
)

// ParseRouteDecision decodes the router model's reply into a RouteDecision.
// The enumeration is closed: any reply that does not decode into exactly one
// of the known agents is an error. There is no heuristic fallback route --
// a misparse fails the turn rather than silently misrouting it.
func ParseRouteDecision(content string) (decision *model.RouteDecision, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "route_parser").Msgf("panic recovered: %v", r)
			err = errx.WrapRouteParse(fmt.Errorf("route parser panic"))
			decision = nil
		}
	}()

	if len(content) > maxContentLen {
		return nil, errx.WrapRouteParse(fmt.Errorf("router reply too large (%d bytes)", len(content)))
	}

	payload := extractJSONObject(content)
	if payload == "" {
		return nil, errx.WrapRouteParse(fmt.Errorf("no JSON object in router reply: %q", snippet(content)))
	}

	var d model.RouteDecision
	if uerr := json.Unmarshal([]byte(payload), &d); uerr != nil {
		return nil, errx.WrapRouteParse(fmt.Errorf("decode %q: %w", snippet(payload), uerr))
	}
	if !d.Next.Valid() {
		// UnmarshalJSON already rejects unknown values; this guards the
		// zero value when "next" is absent entirely.
		return nil, errx.WrapRouteParse(fmt.Errorf("missing next field in %q", snippet(payload)))
	}

	return &d, nil
}

// extractJSONObject pulls the outermost {...} out of a model reply, tolerating
// markdown code fences and surrounding prose the model sometimes adds despite
// instructions.
func extractJSONObject(content string) string {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrSnippet {
		return s[:maxErrSnippet] + "..."
	}
	return s
}
