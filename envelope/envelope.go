package envelope

// CommandRequest is one extracted command, ready for dispatch.
// Name is never empty on a request returned by Parse; Params is never nil.
type CommandRequest struct {
	Name   string         `json:"cmd"`
	Params map[string]any `json:"params"`
}

// CommandResult pairs an executed command with its outcome. The request is
// referenced by name only; correlation in the formatted payload is positional.
type CommandResult struct {
	Name    string `json:"name"`
	Result  any    `json:"result"`
	IsError bool   `json:"is_error,omitempty"`
}

// Warning reports one envelope that could not be turned into a
// CommandRequest. Warnings are diagnostics, never fatal: parsing always
// continues with the remainder of the text.
type Warning struct {
	Fragment string `json:"fragment"`
	Reason   string `json:"reason"`
}

// ErrorResult builds a CommandResult carrying an error value in the shape
// the model sees it: {"error": message}.
func ErrorResult(name, message string) CommandResult {
	return CommandResult{
		Name:    name,
		Result:  map[string]any{"error": message},
		IsError: true,
	}
}
