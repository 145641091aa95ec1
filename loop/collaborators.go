package loop

import "context"

// ModelClient is the model collaborator. Send produces the raw response text
// for a prompt; history carries the completed exchanges of the current run
// for clients that build multi-turn context. A returned error is treated as
// a transport failure and fails the run.
type ModelClient interface {
	Send(ctx context.Context, prompt string, history []Exchange) (string, error)
}

// CommandExecutor is the command-execution collaborator. A returned error is
// captured into the command's result as {"error": message}; it never aborts
// the remaining commands of the iteration or the run.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, params map[string]any) (any, error)
}

// Outcome is the completion value of an asynchronous command execution.
type Outcome struct {
	Result any
	Err    error
}

// AsyncCommandExecutor is an optional extension of CommandExecutor. The
// controller uses it only when a response carried exactly one command, and
// always waits for the outcome before forming the next prompt; multi-command
// responses are dispatched synchronously to keep side effects ordered.
type AsyncCommandExecutor interface {
	CommandExecutor
	ExecuteAsync(ctx context.Context, name string, params map[string]any) <-chan Outcome
}

// GoalPredicate decides whether the run's objective has been satisfied,
// judged against the latest response text. It is evaluated once per
// iteration after command dispatch. A panic inside the predicate is logged
// and treated as "goal not reached".
type GoalPredicate func(responseText string) bool
