package envelope

import (
	"encoding/json"
	"fmt"
)

// resultPayload is the wire shape of one formatted result:
// {"request": {"cmd": name}, "result": value_or_error}
type resultPayload struct {
	Request struct {
		Cmd string `json:"cmd"`
	} `json:"request"`
	Result any `json:"result"`
}

// FormatResults serializes execution results into a single JSON array for the
// tool output turn. Element order matches the input order, which callers keep
// aligned with extraction order. The output is always valid JSON: an empty
// input produces "[]" and a result value that cannot be marshalled is
// replaced by an error object.
func FormatResults(results []CommandResult) string {
	payloads := make([]resultPayload, 0, len(results))
	for _, r := range results {
		var p resultPayload
		p.Request.Cmd = r.Name
		p.Result = r.Result
		if _, err := json.Marshal(r.Result); err != nil {
			p.Result = map[string]any{
				"error": fmt.Sprintf("unserializable result: %v", err),
			}
		}
		payloads = append(payloads, p)
	}

	out, err := json.Marshal(payloads)
	if err != nil {
		// Unreachable after the per-element check, but never return
		// invalid JSON.
		return "[]"
	}
	return string(out)
}
