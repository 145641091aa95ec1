package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// ExecResult holds the result of a shell execution.
type ExecResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
}

// Output returns combined stdout and stderr.
func (r ExecResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// DirEntry represents a directory listing entry.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// sensitiveEnvPatterns are case-insensitive suffixes for environment
// variables excluded from shell executions by default.
var sensitiveEnvPatterns = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// safeEnvVars are always passed through regardless of filtering.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.HasSuffix(upper, pattern) {
			return true
		}
	}
	return false
}

func filterEnvironment() []string {
	var filtered []string
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := parts[0]
		if safeEnvVars[name] || !isSensitiveEnvVar(name) {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// Workspace scopes command execution and file operations to a working
// directory on the local machine.
type Workspace struct {
	workingDir string
}

// NewWorkspace creates a workspace rooted at workingDir; an empty dir means
// the process working directory.
func NewWorkspace(workingDir string) *Workspace {
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	return &Workspace{workingDir: workingDir}
}

// Dir returns the workspace's working directory.
func (w *Workspace) Dir() string { return w.workingDir }

func (w *Workspace) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.workingDir, path)
}

// ReadFile reads a file, returning line-numbered content. offset is a
// 1-based start line; limit bounds the number of lines (0 = all).
func (w *Workspace) ReadFile(path string, offset, limit int) (string, error) {
	data, err := os.ReadFile(w.resolvePath(path))
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	startLine := 0
	if offset > 0 {
		startLine = offset - 1
	}
	if startLine >= len(lines) {
		return "", nil
	}
	endLine := len(lines)
	if limit > 0 && startLine+limit < endLine {
		endLine = startLine + limit
	}

	var sb strings.Builder
	for i := startLine; i < endLine; i++ {
		fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
	}
	return sb.String(), nil
}

// WriteFile writes content, creating parent directories as needed.
func (w *Workspace) WriteFile(path, content string) error {
	resolved := w.resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("write_file: %w", err)
	}
	return os.WriteFile(resolved, []byte(content), 0644)
}

// AppendFile appends content to a file, creating it if missing.
func (w *Workspace) AppendFile(path, content string) error {
	resolved := w.resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("append_file: %w", err)
	}
	f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("append_file: %w", err)
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

// DeleteFile removes a file.
func (w *Workspace) DeleteFile(path string) error {
	if err := os.Remove(w.resolvePath(path)); err != nil {
		return fmt.Errorf("delete_file: %w", err)
	}
	return nil
}

// FileExists reports whether a path exists.
func (w *Workspace) FileExists(path string) bool {
	_, err := os.Stat(w.resolvePath(path))
	return err == nil
}

// ListDir lists directory entries.
func (w *Workspace) ListDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(w.resolvePath(path))
	if err != nil {
		return nil, fmt.Errorf("list_dir: %w", err)
	}

	result := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		de := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if info, err := entry.Info(); err == nil {
			de.Size = info.Size()
		}
		result = append(result, de)
	}
	return result, nil
}

// Glob matches a pattern under path, returning workspace-relative paths
// where possible.
func (w *Workspace) Glob(pattern, path string) ([]string, error) {
	if path == "" {
		path = w.workingDir
	} else {
		path = w.resolvePath(path)
	}

	matches, err := filepath.Glob(filepath.Join(path, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}

	result := make([]string, len(matches))
	for i, m := range matches {
		rel, err := filepath.Rel(w.workingDir, m)
		if err != nil {
			result[i] = m
		} else {
			result[i] = rel
		}
	}
	return result, nil
}

// Grep searches for pattern, preferring ripgrep with a grep fallback.
func (w *Workspace) Grep(ctx context.Context, pattern, path string, caseInsensitive bool) (string, error) {
	if path == "" {
		path = w.workingDir
	} else {
		path = w.resolvePath(path)
	}

	rgPath, err := exec.LookPath("rg")
	if err != nil {
		args := []string{"-rn", pattern, path}
		if caseInsensitive {
			args = append([]string{"-i"}, args...)
		}
		cmd := exec.CommandContext(ctx, "grep", args...)
		cmd.Dir = w.workingDir
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		_ = cmd.Run() // exit 1 means no matches
		return stdout.String(), nil
	}

	args := []string{pattern, path, "--line-number", "--no-heading"}
	if caseInsensitive {
		args = append(args, "-i")
	}
	cmd := exec.CommandContext(ctx, rgPath, args...)
	cmd.Dir = w.workingDir
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	_ = cmd.Run()
	return stdout.String(), nil
}

// Exec runs a shell command with a timeout, killing the whole process group
// on expiry.
func (w *Workspace) Exec(ctx context.Context, command string, timeoutMs int, workingDir string) (*ExecResult, error) {
	if workingDir == "" {
		workingDir = w.workingDir
	} else {
		workingDir = w.resolvePath(workingDir)
	}

	if timeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
	}

	shell := "/bin/bash"
	shellArg := "-c"
	if runtime.GOOS == "windows" {
		shell = "cmd.exe"
		shellArg = "/c"
	}

	cmd := exec.CommandContext(ctx, shell, shellArg, command)
	cmd.Dir = workingDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = filterEnvironment()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.ExitCode = -1
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("shell: %w", err)
		}
	}

	return result, nil
}
