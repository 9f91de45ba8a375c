package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

// testCLI runs commands against a fresh data directory.
type testCLI struct {
	t       *testing.T
	dataDir string
}

func createTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NESTCHECK_DATA_DIR", dir)
	t.Setenv("NESTCHECK_LOG_LEVEL", "error")
	color.NoColor = true
	return &testCLI{t: t, dataDir: dir}
}

// run executes the root command and returns what it wrote to stdout.
func (c *testCLI) run(args ...string) (string, error) {
	c.t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// runJSON runs with --format json and decodes the payload into v (if non-nil
// and the command succeeded).
func (c *testCLI) runJSON(v any, args ...string) (*jsonResponse, error) {
	c.t.Helper()
	out, err := c.run(append(args, "--format", "json")...)
	var resp jsonResponse
	require.NoError(c.t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if v != nil && resp.Status == "ok" {
		require.NoError(c.t, json.Unmarshal(resp.Data, v))
	}
	return &resp, err
}

// mustJSON is runJSON for commands expected to succeed.
func (c *testCLI) mustJSON(v any, args ...string) {
	c.t.Helper()
	resp, err := c.runJSON(v, args...)
	require.NoError(c.t, err)
	require.Equal(c.t, "ok", resp.Status)
}

// failJSON runs a command expected to fail and returns its error code.
func (c *testCLI) failJSON(wantExit int, args ...string) string {
	c.t.Helper()
	resp, err := c.runJSON(nil, args...)
	require.Error(c.t, err)
	require.Equal(c.t, wantExit, GetExitCode(err))
	require.Equal(c.t, "error", resp.Status)
	require.NotNil(c.t, resp.Error)
	return resp.Error.Code
}
