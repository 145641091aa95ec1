package loop

import "fmt"

// ConfigurationError reports invalid run arguments. It is returned
// synchronously before any model call; the run never enters the running
// state.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "loop configuration: " + e.Message
}

// TransportError wraps a model collaborator failure. It is fatal to the
// current run; retry policy, if any, belongs to the model client.
type TransportError struct {
	Iteration int
	Cause     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model transport failed at iteration %d: %v", e.Iteration, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
