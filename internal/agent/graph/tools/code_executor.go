package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

type SandboxConfig struct {
	PythonBin  string `envconfig:"SANDBOX_PYTHON_BIN" default:"python3"`
	Timeout    int    `envconfig:"SANDBOX_TIMEOUT" default:"10"`
	MaxCodeLen int    `envconfig:"SANDBOX_MAX_CODE_LEN" default:"5000"`
}

// forbiddenPatterns is a regex denylist of dangerous constructs, checked
// before execution. This is a best-effort mitigation, not a security
// boundary: it does not stop indirect access via attribute traversal or
// string-built call names. Do not rely on it for isolation; run the
// interpreter itself in a constrained environment.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)os\.system`),
	regexp.MustCompile(`(?i)subprocess`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)exec\(`),
	regexp.MustCompile(`(?i)__import__`),
	regexp.MustCompile(`(?i)open\(`),
	regexp.MustCompile(`(?i)rm\s+-rf`),
}

// CodeRunner executes a script and returns captured standard output.
// Swappable so tests can avoid spawning an interpreter.
type CodeRunner interface {
	Run(ctx context.Context, code string) (stdout string, err error)
}

// PythonRunner runs code with a python interpreter subprocess under a timeout.
type PythonRunner struct {
	Bin     string
	Timeout time.Duration
}

func NewPythonRunner(cfg SandboxConfig) *PythonRunner {
	bin := cfg.PythonBin
	if bin == "" {
		bin = "python3"
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PythonRunner{Bin: bin, Timeout: timeout}
}

func (r *PythonRunner) Run(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Bin, "-c", code)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("execution timed out after %s", r.Timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.New(msg)
	}
	return stdout.String(), nil
}

// CheckCodeSafety applies the length cap and the denylist. It returns a
// human-readable rejection reason, or "" when the code may run.
func CheckCodeSafety(code string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 5000
	}
	if len(code) > maxLen {
		return fmt.Sprintf("code is too long (%d bytes, max %d)", len(code), maxLen)
	}
	for _, p := range forbiddenPatterns {
		if p.MatchString(code) {
			return fmt.Sprintf("code contains a forbidden operation: %s", p.String())
		}
	}
	return ""
}

type ExecutePythonInput struct {
	Code string `json:"code"`
}

// NewExecutePythonTool wraps a CodeRunner as an agent tool. Rejections,
// syntax errors, runtime errors and timeouts all come back as result strings;
// the tool itself never fails.
func NewExecutePythonTool(runner CodeRunner, cfg SandboxConfig) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolExecutePython,
			Desc: "Execute Python code and return its standard output. Input must be a complete, valid Python script. To see the value of an expression, print it with print(...). Dangerous operations (file access, system calls, subprocesses, dynamic evaluation) are rejected before execution.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"code": {
					Type:     "string",
					Desc:     "Python source code to run, e.g. print(2 + 2)",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *ExecutePythonInput) (string, error) {
			if strings.TrimSpace(in.Code) == "" {
				return "Safety check failed: empty code.", nil
			}
			if reason := CheckCodeSafety(in.Code, cfg.MaxCodeLen); reason != "" {
				logx.Warn().Str("reason", reason).Msg("Sandbox rejected code")
				return "Safety check failed: " + reason, nil
			}

			out, err := runner.Run(ctx, in.Code)
			if err != nil {
				return fmt.Sprintf("Execution failed:\n%v", err), nil
			}
			if strings.TrimSpace(out) == "" {
				return "Executed successfully (no output). Use print(...) to produce output.", nil
			}
			return "Executed successfully:\n" + out, nil
		},
	)
}
