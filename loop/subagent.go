package loop

import (
	"context"
	"fmt"
)

// SubAgentSpawner creates child controllers for delegated tasks, enforcing a
// nesting depth limit so delegation cannot recurse without bound.
type SubAgentSpawner struct {
	maxDepth int
	depth    int
	build    func(depth int) (*Controller, error)
}

// NewSubAgentSpawner creates a spawner. build constructs a fresh child
// controller for the given nesting depth; it is called once per spawned
// agent, since a controller runs only once.
func NewSubAgentSpawner(maxDepth, currentDepth int, build func(depth int) (*Controller, error)) *SubAgentSpawner {
	return &SubAgentSpawner{
		maxDepth: maxDepth,
		depth:    currentDepth,
		build:    build,
	}
}

// CanSpawn reports whether nesting depth allows another child.
func (s *SubAgentSpawner) CanSpawn() bool {
	return s.depth < s.maxDepth
}

// Spawn runs a delegated task in a child controller and blocks until it
// finishes.
func (s *SubAgentSpawner) Spawn(ctx context.Context, task string) (State, error) {
	if !s.CanSpawn() {
		return State{}, fmt.Errorf("maximum subagent depth (%d) reached", s.maxDepth)
	}
	child, err := s.build(s.depth + 1)
	if err != nil {
		return State{}, fmt.Errorf("build subagent: %w", err)
	}
	return child.Run(ctx, task)
}

// RegisterSpawnAgent installs the spawn_agent command on a registry. The
// command runs a child agent synchronously and reports its final response.
// Params: {"task": string}.
func RegisterSpawnAgent(reg *Registry, spawner *SubAgentSpawner) {
	reg.Register("spawn_agent", func(ctx context.Context, params map[string]any) (any, error) {
		task, _ := params["task"].(string)
		if task == "" {
			return nil, fmt.Errorf("task is required")
		}

		state, err := spawner.Spawn(ctx, task)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"output":     state.LastResponse(),
			"status":     string(state.Status),
			"iterations": state.Iteration,
		}, nil
	})
}
