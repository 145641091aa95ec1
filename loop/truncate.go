package loop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized command output is cut down before
// it is folded into the next prompt.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// fallbackCharLimit applies to commands with no configured limit.
const fallbackCharLimit = 30000

// defaultCharLimits are per-command character limits for the built-in
// command set.
var defaultCharLimits = map[string]int{
	"read_file":   50000,
	"shell":       30000,
	"grep":        20000,
	"glob":        20000,
	"write_file":  1000,
	"spawn_agent": 20000,
}

// defaultTruncationModes pick head_tail for outputs whose start and end both
// matter.
var defaultTruncationModes = map[string]TruncationMode{
	"read_file":   TruncateHeadTail,
	"shell":       TruncateHeadTail,
	"grep":        TruncateTail,
	"glob":        TruncateTail,
	"write_file":  TruncateTail,
	"spawn_agent": TruncateHeadTail,
}

// defaultLineLimits apply after character truncation.
var defaultLineLimits = map[string]int{
	"shell": 256,
	"grep":  200,
	"glob":  500,
}

// Limits configures output truncation per command name. Zero-value maps fall
// back to the package defaults.
type Limits struct {
	CharLimits map[string]int `json:"char_limits,omitempty"`
	LineLimits map[string]int `json:"line_limits,omitempty"`
}

// TruncateOutput applies character-based truncation.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[WARNING: Command output was truncated. First %d characters were removed. "+
			"The full output is available in the event stream.]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[WARNING: Command output was truncated. %d characters were removed from the middle. "+
				"The full output is available in the event stream. "+
				"If you need specific parts, re-run the command with narrower parameters.]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation with a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateCommandOutput runs the full truncation pipeline for one command:
// character truncation first, line truncation second.
func TruncateCommandOutput(output, name string, limits Limits) string {
	maxChars, ok := limits.CharLimits[name]
	if !ok {
		maxChars, ok = defaultCharLimits[name]
		if !ok {
			maxChars = fallbackCharLimit
		}
	}

	mode, ok := defaultTruncationModes[name]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	maxLines := limits.LineLimits[name]
	if maxLines == 0 {
		maxLines = defaultLineLimits[name]
	}
	if maxLines > 0 {
		result = TruncateLines(result, maxLines)
	}

	return result
}
