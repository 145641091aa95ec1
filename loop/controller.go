package loop

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autoloop/envelope"
)

// DefaultContinuePrompt is sent when a response carries no commands and the
// run was started with AlwaysContinue.
const DefaultContinuePrompt = "continue"

// Options configures a run.
type Options struct {
	// MaxIterations bounds the number of completed round-trips. 0 means
	// unbounded, which requires ConfirmUnbounded as a safety valve against
	// runaway token consumption.
	MaxIterations    int
	ConfirmUnbounded bool

	// AlwaysContinue synthesizes a fixed continuation prompt whenever a
	// response carries no commands. Mutually exclusive with GoalPredicate.
	AlwaysContinue bool
	ContinuePrompt string

	// GoalPredicate, when set, is evaluated against each response after
	// command dispatch; a true result stops the run.
	GoalPredicate GoalPredicate

	// Parser overrides the envelope parser. By default the controller
	// validates command names against the executor when it is a *Registry.
	Parser *envelope.Parser

	// LoopDetectionWindow enables repeated-command detection over the last
	// N dispatched commands. 0 disables detection.
	LoopDetectionWindow int

	// OutputLimits configure result truncation before results are folded
	// into the next prompt.
	OutputLimits Limits

	// Lifecycle callbacks, invoked from the loop goroutine.
	OnIterationComplete func(Exchange)
	OnCommandDispatched func(envelope.CommandRequest, envelope.CommandResult)

	// Logger receives parse warnings, dispatch errors, and predicate
	// panics. Defaults to a nop logger.
	Logger *zap.Logger

	// EventBuffer sizes the event channel. Defaults to 256.
	EventBuffer int
}

// Controller drives one autonomous run. It is created idle, runs once, and
// ends in a terminal status; a fresh run requires a fresh Controller.
type Controller struct {
	id       string
	model    ModelClient
	executor CommandExecutor
	opts     Options
	parser   envelope.Parser
	emitter  *Emitter
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	cancelled bool
	started   bool
}

// NewController creates a Controller for the given collaborators. A nil opts
// uses defaults (MaxIterations must then be set via Options to run bounded;
// the zero value is unbounded and Run will demand confirmation).
func NewController(model ModelClient, executor CommandExecutor, opts *Options) *Controller {
	runID := uuid.New().String()

	var o Options
	if opts != nil {
		o = *opts
	}
	if o.ContinuePrompt == "" {
		o.ContinuePrompt = DefaultContinuePrompt
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	parser := envelope.Parser{}
	if o.Parser != nil {
		parser = *o.Parser
	} else if reg, ok := executor.(*Registry); ok {
		parser.Allowed = reg.Allowed
	}

	return &Controller{
		id:       runID,
		model:    model,
		executor: executor,
		opts:     o,
		parser:   parser,
		emitter:  NewEmitter(runID, o.EventBuffer),
		logger:   o.Logger.With(zap.String("run_id", runID)),
		state: State{
			RunID:         runID,
			MaxIterations: o.MaxIterations,
			Status:        StatusIdle,
		},
	}
}

// ID returns the run identifier.
func (c *Controller) ID() string { return c.id }

// Events returns the event channel for the host application.
func (c *Controller) Events() <-chan Event {
	return c.emitter.Events()
}

// State returns a snapshot of the run state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.History = make([]Exchange, len(c.state.History))
	copy(s.History, c.state.History)
	return s
}

// Cancel signals the run to stop. The flag is polled at iteration
// boundaries: an in-flight command dispatch always completes first, so no
// command is interrupted mid-execution.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
}

// Run executes the loop starting from initialPrompt and blocks until a
// terminal status is reached. It returns the final state snapshot; the error
// is non-nil only for configuration failures and fatal transport failures.
// Completed work is never dropped: the returned state carries every finished
// exchange even when the run fails.
func (c *Controller) Run(ctx context.Context, initialPrompt string) (State, error) {
	defer c.emitter.Close()
	if err := c.begin(); err != nil {
		return c.State(), err
	}

	c.emitter.Emit(EventRunStart, map[string]any{
		"max_iterations":  c.opts.MaxIterations,
		"always_continue": c.opts.AlwaysContinue,
	})

	prompt := initialPrompt
	for {
		if c.stopIfCancelled(ctx) {
			break
		}

		response, err := c.model.Send(ctx, prompt, c.historyCopy())
		if err != nil {
			c.setStatus(StatusFailed)
			c.emitter.Emit(EventError, map[string]any{"error": err.Error()})
			c.emitter.Emit(EventRunEnd, map[string]any{"status": string(StatusFailed)})
			terr := &TransportError{Iteration: c.State().Iteration, Cause: err}
			c.logger.Error("model transport failed", zap.Error(err))
			return c.State(), terr
		}
		c.emitter.Emit(EventModelResponse, map[string]any{"text": response})

		requests, warnings := c.parser.Parse(response)
		for _, w := range warnings {
			c.logger.Warn("envelope parse warning",
				zap.String("reason", w.Reason),
				zap.String("fragment", w.Fragment))
			c.emitter.Emit(EventParseWarning, map[string]any{
				"reason":   w.Reason,
				"fragment": w.Fragment,
			})
		}

		results := c.dispatch(ctx, requests)

		exchange := Exchange{
			Prompt:   prompt,
			Response: response,
			Requests: requests,
			Results:  results,
		}
		iteration := c.appendExchange(exchange)
		c.emitter.Emit(EventIterationEnd, map[string]any{
			"iteration": iteration,
			"commands":  len(requests),
		})
		if c.opts.OnIterationComplete != nil {
			c.opts.OnIterationComplete(exchange)
		}

		if c.opts.GoalPredicate != nil && c.goalReached(response) {
			c.setStatus(StatusGoalReached)
			break
		}
		if c.opts.MaxIterations > 0 && iteration >= c.opts.MaxIterations {
			c.setStatus(StatusMaxIterations)
			break
		}
		if c.stopIfCancelled(ctx) {
			break
		}

		prompt = c.nextPrompt(exchange)
	}

	final := c.State()
	c.emitter.Emit(EventRunEnd, map[string]any{
		"status":     string(final.Status),
		"iterations": final.Iteration,
	})
	return final, nil
}

// begin validates the run arguments and moves the controller to running.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return &ConfigurationError{Message: "controller has already run; create a new Controller"}
	}
	if c.model == nil {
		return &ConfigurationError{Message: "a model client is required"}
	}
	if c.executor == nil {
		return &ConfigurationError{Message: "a command executor is required"}
	}
	if c.opts.MaxIterations < 0 {
		return &ConfigurationError{Message: "max iterations must not be negative"}
	}
	if c.opts.MaxIterations == 0 && !c.opts.ConfirmUnbounded {
		return &ConfigurationError{Message: "unbounded run requires explicit confirmation"}
	}
	if c.opts.AlwaysContinue && c.opts.GoalPredicate != nil {
		return &ConfigurationError{Message: "always-continue and goal predicate are mutually exclusive"}
	}

	c.started = true
	c.state.Status = StatusRunning
	return nil
}

// dispatch executes the extracted commands in extraction order. A single
// command may run asynchronously when the executor supports it; the
// controller waits for completion regardless, so the loop never proceeds
// with partial results.
func (c *Controller) dispatch(ctx context.Context, requests []envelope.CommandRequest) []envelope.CommandResult {
	if len(requests) == 0 {
		return nil
	}

	results := make([]envelope.CommandResult, 0, len(requests))

	if len(requests) == 1 {
		if async, ok := c.executor.(AsyncCommandExecutor); ok {
			req := requests[0]
			c.emitter.Emit(EventCommandStart, map[string]any{"command": req.Name})
			outcome := <-async.ExecuteAsync(ctx, req.Name, req.Params)
			results = append(results, c.finishCommand(req, outcome.Result, outcome.Err))
			return results
		}
	}

	for _, req := range requests {
		c.emitter.Emit(EventCommandStart, map[string]any{"command": req.Name})
		value, err := c.executor.Execute(ctx, req.Name, req.Params)
		results = append(results, c.finishCommand(req, value, err))
	}
	return results
}

// finishCommand folds one execution outcome into a CommandResult, wrapping
// errors as data so the model can self-correct on the next turn.
func (c *Controller) finishCommand(req envelope.CommandRequest, value any, err error) envelope.CommandResult {
	var result envelope.CommandResult
	if err != nil {
		c.logger.Warn("command dispatch failed",
			zap.String("command", req.Name),
			zap.Error(err))
		result = envelope.ErrorResult(req.Name, err.Error())
	} else {
		result = envelope.CommandResult{Name: req.Name, Result: value}
	}

	data := map[string]any{"command": req.Name, "is_error": result.IsError}
	if s, ok := value.(string); ok {
		data["output"] = s
	}
	c.emitter.Emit(EventCommandEnd, data)

	if c.opts.OnCommandDispatched != nil {
		c.opts.OnCommandDispatched(req, result)
	}
	return result
}

// nextPrompt forms the prompt for the following iteration from the exchange
// that just completed.
func (c *Controller) nextPrompt(exchange Exchange) string {
	if len(exchange.Results) > 0 {
		prompt := envelope.FormatResults(c.truncateResults(exchange.Results))
		if c.opts.LoopDetectionWindow > 0 && DetectLoop(c.historyCopy(), c.opts.LoopDetectionWindow) {
			note := fmt.Sprintf("Loop detected: the last %d commands follow a repeating pattern. Try a different approach.", c.opts.LoopDetectionWindow)
			c.emitter.Emit(EventLoopDetected, map[string]any{"message": note})
			prompt += "\n\n" + note
		}
		return prompt
	}
	if c.opts.AlwaysContinue {
		return c.opts.ContinuePrompt
	}
	// Command-free turn with no goal: feed the response back so the model
	// keeps the self-conversation going.
	return exchange.Response
}

// truncateResults applies per-command output limits to string results before
// they are folded into the next prompt. The event stream already carried the
// full output.
func (c *Controller) truncateResults(results []envelope.CommandResult) []envelope.CommandResult {
	truncated := make([]envelope.CommandResult, len(results))
	for i, r := range results {
		truncated[i] = r
		if s, ok := r.Result.(string); ok {
			truncated[i].Result = TruncateCommandOutput(s, r.Name, c.opts.OutputLimits)
		}
	}
	return truncated
}

// goalReached evaluates the goal predicate, recovering from panics.
func (c *Controller) goalReached(response string) (reached bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("goal predicate panicked", zap.Any("panic", r))
			reached = false
		}
	}()
	return c.opts.GoalPredicate(response)
}

// stopIfCancelled checks the external cancellation flag and the context at
// an iteration boundary.
func (c *Controller) stopIfCancelled(ctx context.Context) bool {
	c.mu.Lock()
	cancelled := c.cancelled
	c.mu.Unlock()

	if !cancelled {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
	}
	if cancelled {
		c.setStatus(StatusCancelled)
	}
	return cancelled
}

func (c *Controller) appendExchange(exchange Exchange) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.History = append(c.state.History, exchange)
	c.state.Iteration++
	return c.state.Iteration
}

func (c *Controller) historyCopy() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := make([]Exchange, len(c.state.History))
	copy(h, c.state.History)
	return h
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Status.Terminal() {
		c.state.Status = status
	}
}
