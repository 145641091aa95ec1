// Package envelope implements the command envelope protocol used between a
// model and the command-execution layer.
//
// A model response may embed zero or more command requests, each wrapped in a
// delimited envelope containing a single JSON object:
//
//	<tool>{"cmd": "shell", "params": {"command": "ls"}}</tool>
//
// A legacy delimiter form is accepted and is functionally identical:
//
//	~###~{"cmd": "shell", "params": {"command": "ls"}}~###~
//
// Parse extracts every well-formed envelope in left-to-right order, skipping
// malformed ones with a warning instead of failing the whole response.
// FormatResults performs the inverse direction, serializing execution results
// into a JSON array suitable for appending to the conversation as the tool
// output turn:
//
//	[{"request": {"cmd": "shell"}, "result": {"stdout": "..."}}]
//
// The package has no side effects and performs no execution; dispatching the
// extracted requests is the loop package's job.
package envelope
