// Package loop implements the autonomous loop controller.
//
// A Controller drives a bounded or unbounded request/response/execute cycle:
// each iteration sends the current prompt to a model collaborator, extracts
// command requests from the response with the envelope package, dispatches
// them to a command-execution collaborator in extraction order, folds the
// formatted results into the next prompt, and decides whether to continue,
// stop, or fail.
//
// The controller depends on its collaborators only through narrow
// interfaces:
//
//   - ModelClient: produces a response for a prompt plus history.
//   - CommandExecutor: runs one named command; the Registry type is the
//     standard implementation, pairing named handlers with an allow-list.
//
// # Quick Start
//
//	reg := loop.NewRegistry(nil)
//	reg.Register("current_time", func(ctx context.Context, params map[string]any) (any, error) {
//	    return time.Now().Format(time.RFC3339), nil
//	})
//
//	ctl := loop.NewController(model, reg, &loop.Options{MaxIterations: 5})
//	state, err := ctl.Run(ctx, "What time is it? Use the current_time command.")
//
// A Controller runs exactly once. Terminal statuses are final; a new run
// requires a new Controller. Hosts observe progress through the buffered
// event channel returned by Events, or through the callback options.
package loop
