package loop

import (
	"context"
	"testing"
)

func newTestSpawner(maxDepth, depth int, model *mockModel) *SubAgentSpawner {
	return NewSubAgentSpawner(maxDepth, depth, func(childDepth int) (*Controller, error) {
		return NewController(model, newMockExecutor(), &Options{MaxIterations: 1}), nil
	})
}

func TestSpawnAgentRunsChild(t *testing.T) {
	model := &mockModel{responses: []string{"child finished the task"}}
	reg := NewRegistry(nil)
	RegisterSpawnAgent(reg, newTestSpawner(1, 0, model))

	got, err := reg.Execute(context.Background(), "spawn_agent", map[string]any{
		"task": "summarize the repo",
	})
	if err != nil {
		t.Fatalf("spawn_agent: %v", err)
	}

	result, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T", got)
	}
	if result["output"] != "child finished the task" {
		t.Errorf("output = %v", result["output"])
	}
	if result["status"] != string(StatusMaxIterations) {
		t.Errorf("status = %v", result["status"])
	}
	if model.callCount() != 1 {
		t.Errorf("child model calls = %d, want 1", model.callCount())
	}
}

func TestSpawnAgentDepthLimit(t *testing.T) {
	model := &mockModel{responses: []string{"x"}}
	reg := NewRegistry(nil)
	RegisterSpawnAgent(reg, newTestSpawner(1, 1, model))

	if _, err := reg.Execute(context.Background(), "spawn_agent", map[string]any{"task": "t"}); err == nil {
		t.Fatal("expected depth limit error")
	}
	if model.callCount() != 0 {
		t.Errorf("child model was called despite depth limit")
	}
}

func TestSpawnAgentRequiresTask(t *testing.T) {
	reg := NewRegistry(nil)
	RegisterSpawnAgent(reg, newTestSpawner(1, 0, &mockModel{responses: []string{"x"}}))

	if _, err := reg.Execute(context.Background(), "spawn_agent", map[string]any{}); err == nil {
		t.Fatal("expected error for missing task")
	}
}
