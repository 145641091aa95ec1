package commands

import (
	"context"
	"fmt"
	"time"

	"autoloop/loop"
)

// Limits bounds shell execution timeouts.
type Limits struct {
	DefaultShellTimeoutMs int
	MaxShellTimeoutMs     int
}

// DefaultLimits returns the default execution limits.
func DefaultLimits() Limits {
	return Limits{
		DefaultShellTimeoutMs: 10000,  // 10 seconds
		MaxShellTimeoutMs:     600000, // 10 minutes
	}
}

// Register installs the built-in command handlers on reg, all scoped to ws.
func Register(reg *loop.Registry, ws *Workspace, limits Limits) {
	registerShell(reg, ws, limits)
	registerReadFile(reg, ws)
	registerWriteFile(reg, ws)
	registerAppendFile(reg, ws)
	registerDeleteFile(reg, ws)
	registerListDir(reg, ws)
	registerGlob(reg, ws)
	registerGrep(reg, ws)
	registerCurrentTime(reg)
}

func registerShell(reg *loop.Registry, ws *Workspace, limits Limits) {
	reg.Register("shell", func(ctx context.Context, params map[string]any) (any, error) {
		command, ok := stringParam(params, "command")
		if !ok || command == "" {
			return nil, fmt.Errorf("command is required")
		}

		timeoutMs, _ := intParam(params, "timeout_ms")
		if timeoutMs <= 0 {
			timeoutMs = limits.DefaultShellTimeoutMs
		}
		if limits.MaxShellTimeoutMs > 0 && timeoutMs > limits.MaxShellTimeoutMs {
			timeoutMs = limits.MaxShellTimeoutMs
		}
		workingDir, _ := stringParam(params, "working_dir")

		result, err := ws.Exec(ctx, command, timeoutMs, workingDir)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"stdout":    result.Stdout,
			"stderr":    result.Stderr,
			"exit_code": result.ExitCode,
			"timed_out": result.TimedOut,
		}, nil
	})
}

func registerReadFile(reg *loop.Registry, ws *Workspace) {
	reg.Register("read_file", func(ctx context.Context, params map[string]any) (any, error) {
		path, ok := stringParam(params, "path")
		if !ok || path == "" {
			return nil, fmt.Errorf("path is required")
		}
		offset, _ := intParam(params, "offset")
		limit, _ := intParam(params, "limit")
		if limit == 0 {
			limit = 2000
		}
		return ws.ReadFile(path, offset, limit)
	})
}

func registerWriteFile(reg *loop.Registry, ws *Workspace) {
	reg.Register("write_file", func(ctx context.Context, params map[string]any) (any, error) {
		path, ok := stringParam(params, "path")
		if !ok || path == "" {
			return nil, fmt.Errorf("path is required")
		}
		content, ok := stringParam(params, "content")
		if !ok {
			return nil, fmt.Errorf("content is required")
		}
		if err := ws.WriteFile(path, content); err != nil {
			return nil, err
		}
		return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
	})
}

func registerAppendFile(reg *loop.Registry, ws *Workspace) {
	reg.Register("append_file", func(ctx context.Context, params map[string]any) (any, error) {
		path, ok := stringParam(params, "path")
		if !ok || path == "" {
			return nil, fmt.Errorf("path is required")
		}
		content, ok := stringParam(params, "content")
		if !ok {
			return nil, fmt.Errorf("content is required")
		}
		if err := ws.AppendFile(path, content); err != nil {
			return nil, err
		}
		return fmt.Sprintf("appended %d bytes to %s", len(content), path), nil
	})
}

func registerDeleteFile(reg *loop.Registry, ws *Workspace) {
	reg.Register("delete_file", func(ctx context.Context, params map[string]any) (any, error) {
		path, ok := stringParam(params, "path")
		if !ok || path == "" {
			return nil, fmt.Errorf("path is required")
		}
		if err := ws.DeleteFile(path); err != nil {
			return nil, err
		}
		return "deleted " + path, nil
	})
}

func registerListDir(reg *loop.Registry, ws *Workspace) {
	reg.Register("list_dir", func(ctx context.Context, params map[string]any) (any, error) {
		path, _ := stringParam(params, "path")
		if path == "" {
			path = "."
		}
		entries, err := ws.ListDir(path)
		if err != nil {
			return nil, err
		}
		return entries, nil
	})
}

func registerGlob(reg *loop.Registry, ws *Workspace) {
	reg.Register("glob", func(ctx context.Context, params map[string]any) (any, error) {
		pattern, ok := stringParam(params, "pattern")
		if !ok || pattern == "" {
			return nil, fmt.Errorf("pattern is required")
		}
		path, _ := stringParam(params, "path")
		return ws.Glob(pattern, path)
	})
}

func registerGrep(reg *loop.Registry, ws *Workspace) {
	reg.Register("grep", func(ctx context.Context, params map[string]any) (any, error) {
		pattern, ok := stringParam(params, "pattern")
		if !ok || pattern == "" {
			return nil, fmt.Errorf("pattern is required")
		}
		path, _ := stringParam(params, "path")
		caseInsensitive, _ := boolParam(params, "case_insensitive")
		return ws.Grep(ctx, pattern, path, caseInsensitive)
	})
}

func registerCurrentTime(reg *loop.Registry) {
	reg.Register("current_time", func(ctx context.Context, params map[string]any) (any, error) {
		return time.Now().Format(time.RFC3339), nil
	})
}
