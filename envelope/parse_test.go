package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainText(t *testing.T) {
	reqs, warns := Parse("no commands here")
	assert.Empty(t, reqs)
	assert.Empty(t, warns)
}

func TestParseSingleTagged(t *testing.T) {
	reqs, warns := Parse(`Let me check that. <tool>{"cmd": "read_file", "params": {"path": "main.go"}}</tool> Done.`)
	require.Len(t, reqs, 1)
	assert.Empty(t, warns)
	assert.Equal(t, "read_file", reqs[0].Name)
	assert.Equal(t, "main.go", reqs[0].Params["path"])
}

func TestParseLegacyDelimiter(t *testing.T) {
	reqs, warns := Parse(`~###~{"cmd": "shell", "params": {"command": "ls -la"}}~###~`)
	require.Len(t, reqs, 1)
	assert.Empty(t, warns)
	assert.Equal(t, "shell", reqs[0].Name)
	assert.Equal(t, "ls -la", reqs[0].Params["command"])
}

func TestParseMultipleInOrder(t *testing.T) {
	text := `First: <tool>{"cmd": "write_file", "params": {"path": "a.txt"}}</tool>
some narration
then <tool>{"cmd": "read_file", "params": {"path": "a.txt"}}</tool>
and finally ~###~{"cmd": "shell", "params": {}}~###~`

	reqs, warns := Parse(text)
	require.Len(t, reqs, 3)
	assert.Empty(t, warns)
	assert.Equal(t, "write_file", reqs[0].Name)
	assert.Equal(t, "read_file", reqs[1].Name)
	assert.Equal(t, "shell", reqs[2].Name)
}

func TestParseMissingParamsDefaultsEmpty(t *testing.T) {
	reqs, _ := Parse(`<tool>{"cmd": "current_time"}</tool>`)
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Params)
	assert.Empty(t, reqs[0].Params)
}

func TestParseMalformedDoesNotAbortRest(t *testing.T) {
	text := `<tool>{"cmd": "first"}</tool>
<tool>{not json at all}</tool>
<tool>{"cmd": "third"}</tool>`

	reqs, warns := Parse(text)
	require.Len(t, reqs, 2)
	assert.Equal(t, "first", reqs[0].Name)
	assert.Equal(t, "third", reqs[1].Name)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Reason, "malformed JSON")
	assert.Contains(t, warns[0].Fragment, "not json")
}

func TestParseInterleavedMalformed(t *testing.T) {
	text := `~###~{broken~###~ <tool>{"cmd": "a"}</tool> ~###~{"cmd": "b"}~###~ <tool>{also broken</tool>`
	reqs, warns := Parse(text)
	require.Len(t, reqs, 2)
	assert.Equal(t, "a", reqs[0].Name)
	assert.Equal(t, "b", reqs[1].Name)
	assert.Len(t, warns, 2)
}

func TestParseMarkerTokenInsideStringValue(t *testing.T) {
	// A delimiter token appearing inside a JSON string must not truncate
	// extraction early.
	reqs, warns := Parse(`~###~{"cmd": "note", "params": {"description": "the legacy marker is ~###~"}}~###~`)
	require.Len(t, reqs, 1)
	assert.Empty(t, warns)
	assert.Equal(t, "note", reqs[0].Name)
	assert.Equal(t, "the legacy marker is ~###~", reqs[0].Params["description"])
}

func TestParseClosingTagInsideStringValue(t *testing.T) {
	reqs, warns := Parse(`<tool>{"cmd": "write_file", "params": {"content": "see </tool> for details"}}</tool>`)
	require.Len(t, reqs, 1)
	assert.Empty(t, warns)
	assert.Equal(t, "see </tool> for details", reqs[0].Params["content"])
}

func TestParseEmptyCmdDropped(t *testing.T) {
	reqs, warns := Parse(`<tool>{"cmd": "", "params": {}}</tool><tool>{"params": {}}</tool>`)
	assert.Empty(t, reqs)
	require.Len(t, warns, 2)
	for _, w := range warns {
		assert.Contains(t, w.Reason, "missing a cmd")
	}
}

func TestParseUnterminatedEnvelope(t *testing.T) {
	reqs, warns := Parse(`<tool>{"cmd": "shell", "params"`)
	assert.Empty(t, reqs)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Reason, "unterminated")
}

func TestParseMissingClosingMarker(t *testing.T) {
	reqs, warns := Parse(`<tool>{"cmd": "shell"} trailing junk <tool>{"cmd": "ok"}</tool>`)
	require.Len(t, reqs, 1)
	assert.Equal(t, "ok", reqs[0].Name)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Reason, "missing closing marker")
}

func TestParseNestedParams(t *testing.T) {
	reqs, _ := Parse(`<tool>{"cmd": "x", "params": {"opts": {"depth": 2, "all": true}, "names": ["a", "b"]}}</tool>`)
	require.Len(t, reqs, 1)
	opts, ok := reqs[0].Params["opts"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), opts["depth"])
	assert.Equal(t, true, opts["all"])
	assert.Equal(t, []any{"a", "b"}, reqs[0].Params["names"])
}

func TestParseAllowedValidator(t *testing.T) {
	p := Parser{Allowed: func(name string) bool { return name == "shell" }}
	reqs, warns := p.Parse(`<tool>{"cmd": "shell"}</tool><tool>{"cmd": "format_disk"}</tool>`)
	require.Len(t, reqs, 1)
	assert.Equal(t, "shell", reqs[0].Name)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Reason, "not allowed")
}

func TestParseWhitespaceBeforeClose(t *testing.T) {
	reqs, warns := Parse("<tool>{\"cmd\": \"shell\"}\n  </tool>")
	require.Len(t, reqs, 1)
	assert.Empty(t, warns)
}
