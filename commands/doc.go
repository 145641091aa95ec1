// Package commands provides the built-in command handlers for the
// autonomous loop: shell execution and file operations scoped to a
// workspace directory.
//
// Register installs the handlers on a loop.Registry; the registry's
// allow-list then decides which of them a run may actually execute:
//
//	ws := commands.NewWorkspace("/path/to/project")
//	reg := loop.NewRegistry([]string{"shell", "read_file", "write_file"})
//	commands.Register(reg, ws, commands.DefaultLimits())
//
// Handlers accept params as decoded from command envelopes
// (map[string]any with float64 numbers) and return JSON-compatible values.
package commands
