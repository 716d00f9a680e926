package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-mcp-server/internal/config"
)

const testSnapshot = `Interactive elements:
[0]<input type="date">/>
[1]<button>Search/>
[2]<p>Welcome aboard/>
`

const testKnowledge = `entries:
  - name: ctrip-oneway
    site: "domain:ctrip.com"
    intent: oneway_flight_search
    template: "https://flights.ctrip.com/online/list/oneway-{departure_code}-{arrival_code}?depdate={date_YYYY-MM-DD}&cabin={cabin}"
    defaults:
      cabin: y
  - name: broken
    site: example.com
    intent: hotel_search
    template: "https://example.com/{city"
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-workspace"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestClassifyText(t *testing.T) {
	out, err := execute(t, "", "classify", writeFile(t, "snap.txt", testSnapshot))
	require.NoError(t, err)

	assert.Contains(t, out, "=== DATE (1) ===")
	assert.Contains(t, out, "[1]<button>Search/> (confidence:85)")
	assert.Contains(t, out, "=== TEXT (1) ===")
	assert.Contains(t, out, "primary candidates: [0 1]")
}

func TestClassifyJSONFromStdin(t *testing.T) {
	input := `[{"index":4,"tag_name":"td","text":"15","attributes":{}},{"index":9,"tag_name":"a","text":"Deals","attributes":{"href":"/deals"}}]`
	out, err := execute(t, input, "classify", "--format", "json", "-")
	require.NoError(t, err)

	var payload struct {
		Count   int `json:"count"`
		Primary []struct {
			ElementIndex int    `json:"element_index"`
			Category     string `json:"category"`
		} `json:"primary"`
		Entries []json.RawMessage `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, 2, payload.Count)
	assert.Len(t, payload.Entries, 2)
	require.Len(t, payload.Primary, 1)
	assert.Equal(t, 4, payload.Primary[0].ElementIndex)
	assert.Equal(t, "CALENDAR", payload.Primary[0].Category)
}

func TestClassifyRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "", "classify", "--format", "xml", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestClassifyEmptyInput(t *testing.T) {
	out, err := execute(t, "", "classify", "-")
	require.NoError(t, err)
	assert.Equal(t, "no elements\n", out)
}

func TestResolveNavigate(t *testing.T) {
	kb := writeFile(t, "kb.yaml", testKnowledge)
	out, err := execute(t, "", "resolve", "https://flights.ctrip.com/", "--knowledge", kb, "--no-enrich",
		"action=oneway_flight_search", "departure_code=sha", "arrival_code=pek", "date_YYYY-MM-DD=2026-01-30")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "navigate",
		"destination": "https://flights.ctrip.com/online/list/oneway-sha-pek?depdate=2026-01-30&cabin=y",
		"entry": "ctrip-oneway"
	}`, out)
}

func TestResolveMissingParameter(t *testing.T) {
	kb := writeFile(t, "kb.yaml", testKnowledge)
	out, err := execute(t, "", "resolve", "flights.ctrip.com", "--knowledge", kb, "--no-enrich",
		"action=oneway_flight_search", "departure_code=sha")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "fallback",
		"entry": "ctrip-oneway",
		"reason": "missing_parameter",
		"missing": ["arrival_code", "date_YYYY-MM-DD"]
	}`, out)
}

func TestResolveRejectsBadIntent(t *testing.T) {
	kb := writeFile(t, "kb.yaml", testKnowledge)

	_, err := execute(t, "", "resolve", "ctrip.com", "--knowledge", kb, "departure")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not key=value")

	_, err = execute(t, "", "resolve", "ctrip.com", "--knowledge", kb, "departure=sha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action")
}

func TestResolveQuery(t *testing.T) {
	kb := writeFile(t, "kb.yaml", testKnowledge)
	out, err := execute(t, "", "resolve", "ctrip.com", "--knowledge", kb, "--no-enrich",
		"--query", "1月30日从上海到北京的机票", "cabin=c")
	require.NoError(t, err)

	var d map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "navigate", d["kind"])
	dest, _ := d["destination"].(string)
	assert.True(t, strings.HasPrefix(dest, "https://flights.ctrip.com/online/list/oneway-sha-pek?depdate="), dest)
	assert.True(t, strings.HasSuffix(dest, "-01-30&cabin=c"), dest)

	_, err = execute(t, "", "resolve", "ctrip.com", "--knowledge", kb, "--query", "从上海到北京的机票")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a date")

	_, err = execute(t, "", "resolve", "ctrip.com", "--knowledge", kb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action")
}

func TestBuildIntent(t *testing.T) {
	now := time.Date(2026, time.January, 20, 9, 0, 0, 0, time.UTC)
	task, err := buildIntent("明天从北京到上海的机票", []string{"adult=2"}, now)
	require.NoError(t, err)
	assert.Equal(t, "oneway_flight_search", task.Action())
	assert.Equal(t, "pek", task["departure_code"])
	assert.Equal(t, "sha", task["arrival_code"])
	assert.Equal(t, "2026-01-21", task["date_YYYY-MM-DD"])
	assert.Equal(t, "2", task["adult"])

	_, err = buildIntent("明天从北京到上海的机票", []string{"adult"}, now)
	assert.ErrorContains(t, err, "not key=value")
}

func TestParseIntent(t *testing.T) {
	intent, err := parseIntent([]string{"action=hotel_search", "city=上海", "note=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "hotel_search", intent.Action())
	assert.Equal(t, "上海", intent["city"])
	assert.Equal(t, "a=b", intent["note"])
	assert.Equal(t, "", intent["empty"])
}

func TestKnowledgeCheckReportsSkippedEntries(t *testing.T) {
	kb := writeFile(t, "kb.yaml", testKnowledge)
	out, err := execute(t, "", "knowledge", "check", kb)
	require.Error(t, err)
	assert.ErrorIs(t, err, errMalformedKnowledge)
	assert.Contains(t, out, `entry "broken"`)
	assert.Contains(t, out, "1 entries loaded, 1 skipped")
}

func TestKnowledgeCheckClean(t *testing.T) {
	kb := writeFile(t, "kb.yaml", strings.SplitN(testKnowledge, "  - name: broken", 2)[0])
	out, err := execute(t, "", "knowledge", "check", kb)
	require.NoError(t, err)
	assert.Equal(t, "1 entries loaded, 0 skipped\n", out)
}

func TestKnowledgeCheckMissingPath(t *testing.T) {
	_, err := execute(t, "", "knowledge", "check", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestKnowledgeList(t *testing.T) {
	kb := writeFile(t, "kb.yaml", testKnowledge)
	out, err := execute(t, "", "knowledge", "list", kb)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "ctrip-oneway"))
	assert.Contains(t, lines[0], "domain:ctrip.com")
}

func TestInitCreatesWorkspace(t *testing.T) {
	root := t.TempDir()
	out, err := execute(t, "", "init", root)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized workspace")
	assert.FileExists(t, filepath.Join(root, config.WorkspaceDirName, config.WorkspaceConfigFile))

	_, err = execute(t, "", "init", root)
	require.Error(t, err)
}
