package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
)

// delimiter is one envelope dialect. The legacy form uses the same token on
// both sides.
type delimiter struct {
	open  string
	close string
}

var delimiters = []delimiter{
	{open: "<tool>", close: "</tool>"},
	{open: "~###~", close: "~###~"},
}

// maxFragmentLen bounds the diagnostic text retained in a Warning.
const maxFragmentLen = 200

// Parser extracts command requests from raw response text. The zero value is
// ready to use; set Allowed to validate command names against a registry.
type Parser struct {
	// Allowed, when non-nil, is consulted for every extracted command name.
	// Requests whose name it rejects are dropped with a warning.
	Allowed func(name string) bool
}

// Parse scans text for all non-overlapping envelopes in left-to-right order
// and returns the well-formed command requests plus a warning for every
// envelope that had to be skipped. Text with no envelopes yields an empty
// request list and no warnings; free text between envelopes is ignored.
//
// Extraction is marker-pair based: the JSON object after an opening marker is
// decoded with a streaming decoder, so a delimiter token appearing inside a
// JSON string value cannot truncate the envelope early.
func (p *Parser) Parse(text string) ([]CommandRequest, []Warning) {
	requests := make([]CommandRequest, 0, 2)
	var warnings []Warning

	pos := 0
	for pos < len(text) {
		d, start, ok := nextOpen(text, pos)
		if !ok {
			break
		}
		bodyStart := start + len(d.open)

		req, consumed, warn := decodeEnvelope(text[bodyStart:], d)
		if warn != nil {
			warnings = append(warnings, *warn)
			pos = bodyStart + consumed
			continue
		}
		pos = bodyStart + consumed

		if req.Name == "" {
			warnings = append(warnings, Warning{
				Fragment: clip(text[bodyStart : bodyStart+consumed]),
				Reason:   "envelope is missing a cmd name",
			})
			continue
		}
		if p.Allowed != nil && !p.Allowed(req.Name) {
			warnings = append(warnings, Warning{
				Fragment: clip(text[bodyStart : bodyStart+consumed]),
				Reason:   fmt.Sprintf("command %q is not allowed", req.Name),
			})
			continue
		}
		requests = append(requests, req)
	}

	return requests, warnings
}

// Parse extracts command requests with a default parser (no name validation).
func Parse(text string) ([]CommandRequest, []Warning) {
	var p Parser
	return p.Parse(text)
}

// nextOpen finds the earliest opening marker of any dialect at or after pos.
func nextOpen(text string, pos int) (delimiter, int, bool) {
	best := -1
	var bestDelim delimiter
	for _, d := range delimiters {
		idx := strings.Index(text[pos:], d.open)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			best = idx
			bestDelim = d
		}
	}
	if best < 0 {
		return delimiter{}, 0, false
	}
	return bestDelim, pos + best, true
}

// decodeEnvelope decodes one envelope body. The body argument starts just
// after the opening marker. It returns the request, the number of body bytes
// consumed (the caller resumes scanning there), and a warning when the
// envelope had to be skipped.
func decodeEnvelope(body string, d delimiter) (CommandRequest, int, *Warning) {
	var raw struct {
		Cmd    string         `json:"cmd"`
		Params map[string]any `json:"params"`
	}

	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return skipMalformed(body, d, err)
	}
	end := int(dec.InputOffset())

	// The closing marker must follow the JSON value, modulo whitespace.
	rest := body[end:]
	trimmed := strings.TrimLeft(rest, " \t\r\n")
	if !strings.HasPrefix(trimmed, d.close) {
		return CommandRequest{}, end, &Warning{
			Fragment: clip(body[:end]),
			Reason:   fmt.Sprintf("envelope is missing closing marker %q", d.close),
		}
	}
	consumed := end + (len(rest) - len(trimmed)) + len(d.close)

	params := raw.Params
	if params == nil {
		params = map[string]any{}
	}
	return CommandRequest{Name: raw.Cmd, Params: params}, consumed, nil
}

// skipMalformed handles a body whose JSON does not decode. The fragment up to
// the next closing marker is retained for diagnostics and scanning resumes
// past it; with no closing marker in sight, scanning resumes immediately
// after the opening marker.
func skipMalformed(body string, d delimiter, err error) (CommandRequest, int, *Warning) {
	if idx := strings.Index(body, d.close); idx >= 0 {
		return CommandRequest{}, idx + len(d.close), &Warning{
			Fragment: clip(body[:idx]),
			Reason:   fmt.Sprintf("malformed JSON in envelope: %v", err),
		}
	}
	return CommandRequest{}, 0, &Warning{
		Fragment: clip(body),
		Reason:   fmt.Sprintf("unterminated envelope: %v", err),
	}
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxFragmentLen {
		return s[:maxFragmentLen] + "..."
	}
	return s
}
