// Package llm provides the model collaborator for the autonomous loop: a
// provider-agnostic client built on the gollm library
// (github.com/teilomillet/gollm).
//
// The Client implements loop.ModelClient. Each Send flattens the run history
// into a single prompt, invokes the provider with retry and exponential
// backoff for transient failures, and classifies provider errors into a
// typed hierarchy so callers can distinguish auth failures from rate limits
// and server errors.
//
//	client, err := llm.New("anthropic",
//	    llm.WithModel("claude-sonnet-4-5"),
//	    llm.WithSystemPrompt(prompt),
//	)
//	ctl := loop.NewController(client, registry, opts)
//
// Non-retryable failures (authentication, invalid requests, context length)
// surface immediately; the loop controller maps any Send error to a failed
// run.
package llm
