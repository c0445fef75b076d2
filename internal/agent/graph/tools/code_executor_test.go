package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner records the code it was asked to run and returns a scripted
// result, so no interpreter process is ever spawned.
type stubRunner struct {
	lastCode string
	stdout   string
	err      error
}

func (r *stubRunner) Run(_ context.Context, code string) (string, error) {
	r.lastCode = code
	return r.stdout, r.err
}

func invokeCodeTool(t *testing.T, runner CodeRunner, args string) string {
	t.Helper()
	bt := NewExecutePythonTool(runner, SandboxConfig{MaxCodeLen: 5000})
	it, ok := bt.(tool.InvokableTool)
	require.True(t, ok)
	out, err := it.InvokableRun(context.Background(), args)
	require.NoError(t, err)
	return out
}

func TestCheckCodeSafety_Denylist(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"os.system", "import os; os.system('ls')"},
		{"subprocess", "import subprocess\nsubprocess.run(['ls'])"},
		{"eval", "eval('2+2')"},
		{"exec", "exec('print(1)')"},
		{"dunder import", "__import__('os')"},
		{"open", "open('/etc/passwd')"},
		{"rm -rf", "print('rm  -rf /')"},
		{"mixed case", "import OS; OS.SYSTEM('ls')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := CheckCodeSafety(tt.code, 5000)
			assert.NotEmpty(t, reason, "code must be rejected: %s", tt.code)
		})
	}
}

func TestCheckCodeSafety_AllowsPlainCode(t *testing.T) {
	for _, code := range []string{
		"print(2+2)",
		"x = [i*i for i in range(10)]\nprint(sum(x))",
		"import math\nprint(math.pi)",
	} {
		assert.Empty(t, CheckCodeSafety(code, 5000), "code must pass: %s", code)
	}
}

func TestCheckCodeSafety_LengthCap(t *testing.T) {
	long := "x = 1\n" + strings.Repeat("# padding\n", 1000)
	reason := CheckCodeSafety(long, 100)
	assert.Contains(t, reason, "too long")
}

func TestExecutePythonTool_HappyPath(t *testing.T) {
	runner := &stubRunner{stdout: "4\n"}
	out := invokeCodeTool(t, runner, `{"code":"print(2+2)"}`)

	assert.Equal(t, "print(2+2)", runner.lastCode)
	assert.Contains(t, out, "Executed successfully")
	assert.Contains(t, out, "4")
}

func TestExecutePythonTool_NoOutput(t *testing.T) {
	runner := &stubRunner{stdout: ""}
	out := invokeCodeTool(t, runner, `{"code":"x = 1"}`)
	assert.Contains(t, out, "no output")
	assert.Contains(t, out, "print(...)")
}

func TestExecutePythonTool_RejectedCodeNeverRuns(t *testing.T) {
	runner := &stubRunner{stdout: "should never appear"}
	out := invokeCodeTool(t, runner, `{"code":"import os; os.system('ls')"}`)

	assert.Contains(t, out, "Safety check failed")
	assert.Empty(t, runner.lastCode, "rejected code must not reach the runner")
}

func TestExecutePythonTool_EmptyCode(t *testing.T) {
	runner := &stubRunner{}
	out := invokeCodeTool(t, runner, `{"code":"   "}`)
	assert.Contains(t, out, "Safety check failed")
	assert.Empty(t, runner.lastCode)
}

func TestExecutePythonTool_RuntimeFailureIsResultString(t *testing.T) {
	runner := &stubRunner{err: errors.New("NameError: name 'y' is not defined")}
	out := invokeCodeTool(t, runner, `{"code":"print(y)"}`)

	assert.Contains(t, out, "Execution failed")
	assert.Contains(t, out, "NameError")
}
