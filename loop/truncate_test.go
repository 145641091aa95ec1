package loop

import (
	"strings"
	"testing"
)

func TestTruncateOutputUnderLimit(t *testing.T) {
	out := TruncateOutput("short", 100, TruncateHeadTail)
	if out != "short" {
		t.Errorf("output modified below limit: %q", out)
	}
}

func TestTruncateOutputHeadTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	out := TruncateOutput(input, 100, TruncateHeadTail)

	if !strings.HasPrefix(out, strings.Repeat("a", 50)) {
		t.Error("head not preserved")
	}
	if !strings.HasSuffix(out, strings.Repeat("z", 50)) {
		t.Error("tail not preserved")
	}
	if !strings.Contains(out, "truncated") {
		t.Error("missing truncation notice")
	}
}

func TestTruncateOutputTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 100)
	out := TruncateOutput(input, 100, TruncateTail)

	if !strings.HasSuffix(out, strings.Repeat("z", 100)) {
		t.Error("tail not preserved")
	}
	if !strings.Contains(out, "First 500 characters were removed") {
		t.Errorf("unexpected notice: %q", out)
	}
}

func TestTruncateLines(t *testing.T) {
	input := strings.TrimSuffix(strings.Repeat("line\n", 100), "\n")
	out := TruncateLines(input, 10)

	if !strings.Contains(out, "90 lines omitted") {
		t.Errorf("unexpected omission notice: %q", out)
	}
	if got := len(strings.Split(out, "\n")); got > 13 {
		t.Errorf("truncated output has %d lines", got)
	}
}

func TestTruncateCommandOutputUsesPerCommandLimits(t *testing.T) {
	limits := Limits{CharLimits: map[string]int{"shell": 20}}
	out := TruncateCommandOutput(strings.Repeat("x", 100), "shell", limits)
	if !strings.Contains(out, "truncated") {
		t.Error("configured limit not applied")
	}

	// Unconfigured command falls back to the default, far above 100 chars.
	out = TruncateCommandOutput(strings.Repeat("x", 100), "other", Limits{})
	if strings.Contains(out, "truncated") {
		t.Error("default limit should not trigger at 100 chars")
	}
}
