package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatResultsEmpty(t *testing.T) {
	assert.Equal(t, "[]", FormatResults(nil))
	assert.Equal(t, "[]", FormatResults([]CommandResult{}))
}

func TestFormatResultsRoundTrip(t *testing.T) {
	results := []CommandResult{
		{Name: "read_file", Result: "file contents"},
		{Name: "shell", Result: map[string]any{"stdout": "ok", "exit_code": 0}},
		ErrorResult("write_file", "permission denied"),
	}

	out := FormatResults(results)

	var decoded []struct {
		Request struct {
			Cmd string `json:"cmd"`
		} `json:"request"`
		Result any `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, len(results))

	assert.Equal(t, "read_file", decoded[0].Request.Cmd)
	assert.Equal(t, "file contents", decoded[0].Result)

	assert.Equal(t, "shell", decoded[1].Request.Cmd)
	shellResult, ok := decoded[1].Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", shellResult["stdout"])

	assert.Equal(t, "write_file", decoded[2].Request.Cmd)
	errResult, ok := decoded[2].Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "permission denied", errResult["error"])
}

func TestFormatResultsOrderPreserved(t *testing.T) {
	results := []CommandResult{
		{Name: "c1", Result: 1},
		{Name: "c2", Result: 2},
		{Name: "c3", Result: 3},
	}

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(FormatResults(results)), &decoded))
	require.Len(t, decoded, 3)
	for i, name := range []string{"c1", "c2", "c3"} {
		req := decoded[i]["request"].(map[string]any)
		assert.Equal(t, name, req["cmd"])
	}
}

func TestFormatResultsUnserializable(t *testing.T) {
	results := []CommandResult{
		{Name: "bad", Result: make(chan int)},
		{Name: "good", Result: "fine"},
	}

	out := FormatResults(results)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)

	badResult, ok := decoded[0]["result"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, badResult["error"], "unserializable")
	assert.Equal(t, "fine", decoded[1]["result"])
}
