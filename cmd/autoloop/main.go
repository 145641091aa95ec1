// Command autoloop runs an autonomous model/command loop from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"autoloop/commands"
	"autoloop/config"
	"autoloop/envelope"
	"autoloop/llm"
	"autoloop/loop"
)

var (
	cfgPath string
	verbose bool

	provider         string
	model            string
	workspaceDir     string
	maxIterations    int
	confirmUnbounded bool
	alwaysContinue   bool
	showEvents       bool
)

var rootCmd = &cobra.Command{
	Use:   "autoloop",
	Short: "Autonomous model/command loop runner",
	Long: `autoloop drives an autonomous conversation loop: it sends a prompt to an
LLM provider, extracts <tool>{"cmd": ..., "params": ...}</tool> command
envelopes from the response, executes them in a workspace, folds the results
back into the next prompt, and repeats until a stop condition is met.`,
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run an autonomous loop starting from the given prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoop(strings.Join(args, " "))
	},
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands the configured loop may execute",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg := buildRegistry(cfg, nil)
		for _, name := range reg.Names() {
			marker := " "
			if reg.Allowed(name) {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		fmt.Println("\n* = allowed by configuration")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	runCmd.Flags().StringVar(&provider, "provider", "", "LLM provider (overrides config)")
	runCmd.Flags().StringVar(&model, "model", "", "model identifier (overrides config)")
	runCmd.Flags().StringVar(&workspaceDir, "workspace", "", "workspace directory for command execution")
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", -1, "iteration limit; 0 = unbounded (requires --confirm-unbounded)")
	runCmd.Flags().BoolVar(&confirmUnbounded, "confirm-unbounded", false, "confirm an unbounded run")
	runCmd.Flags().BoolVar(&alwaysContinue, "always-continue", false, "synthesize a continue prompt on command-free turns")
	runCmd.Flags().BoolVar(&showEvents, "events", true, "print run events to stdout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(commandsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	if provider != "" {
		cfg.LLM.Provider = provider
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if workspaceDir != "" {
		cfg.Commands.WorkspaceDir = workspaceDir
	}
	if maxIterations >= 0 {
		cfg.Loop.MaxIterations = maxIterations
	}
	if alwaysContinue {
		cfg.Loop.AlwaysContinue = true
	}
	return cfg, nil
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

// buildRegistry assembles the command registry from the configuration. A
// non-nil spawner adds subagent delegation.
func buildRegistry(cfg config.Config, spawner *loop.SubAgentSpawner) *loop.Registry {
	ws := commands.NewWorkspace(cfg.Commands.WorkspaceDir)
	reg := loop.NewRegistry(cfg.Commands.Allowed)
	commands.Register(reg, ws, commands.Limits{
		DefaultShellTimeoutMs: cfg.Commands.ShellTimeoutMs,
		MaxShellTimeoutMs:     cfg.Commands.MaxShellTimeoutMs,
	})
	if spawner != nil {
		loop.RegisterSpawnAgent(reg, spawner)
	}
	return reg
}

func buildClient(cfg config.Config) (*llm.Client, error) {
	opts := []llm.Option{
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	}
	if cfg.LLM.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.System != "" {
		opts = append(opts, llm.WithSystemPrompt(cfg.LLM.System))
	}
	return llm.New(cfg.LLM.Provider, opts...)
}

func loopOptions(cfg config.Config, logger *zap.Logger) *loop.Options {
	return &loop.Options{
		MaxIterations:       cfg.Loop.MaxIterations,
		ConfirmUnbounded:    confirmUnbounded,
		AlwaysContinue:      cfg.Loop.AlwaysContinue,
		ContinuePrompt:      cfg.Loop.ContinuePrompt,
		LoopDetectionWindow: cfg.Loop.LoopDetectionWindow,
		OutputLimits: loop.Limits{
			CharLimits: cfg.Loop.OutputCharLimits,
			LineLimits: cfg.Loop.OutputLineLimits,
		},
		OnIterationComplete: func(ex loop.Exchange) {
			logger.Debug("iteration complete",
				zap.String("results", formatResultsPreview(ex.Results)))
		},
		Logger: logger,
	}
}

func runLoop(prompt string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	// Children get their own registry without spawn_agent, so delegation
	// cannot recurse past the configured depth.
	spawner := loop.NewSubAgentSpawner(cfg.Loop.MaxSubagentDepth, 0, func(depth int) (*loop.Controller, error) {
		childReg := buildRegistry(cfg, nil)
		childOpts := loopOptions(cfg, logger)
		if childOpts.MaxIterations == 0 {
			childOpts.MaxIterations = 50
		}
		return loop.NewController(client, childReg, childOpts), nil
	})

	reg := buildRegistry(cfg, spawner)
	ctl := loop.NewController(client, reg, loopOptions(cfg, logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First interrupt stops at the next iteration boundary; a second one
	// aborts immediately.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("cancellation requested; finishing current iteration")
		ctl.Cancel()
		<-sigCh
		cancel()
	}()

	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for ev := range ctl.Events() {
			if showEvents {
				printEvent(ev)
			}
		}
	}()

	state, runErr := ctl.Run(ctx, prompt)
	<-eventsDone

	fmt.Printf("\nrun %s finished: status=%s iterations=%d\n", state.RunID, state.Status, state.Iteration)
	if last := state.LastResponse(); last != "" {
		fmt.Printf("\n%s\n", last)
	}
	return runErr
}

func printEvent(ev loop.Event) {
	switch ev.Kind {
	case loop.EventModelResponse:
		if text, ok := ev.Data["text"].(string); ok {
			fmt.Printf("\n--- response ---\n%s\n", text)
		}
	case loop.EventCommandStart:
		fmt.Printf("[command] %v\n", ev.Data["command"])
	case loop.EventCommandEnd:
		if isErr, _ := ev.Data["is_error"].(bool); isErr {
			fmt.Printf("[command failed] %v\n", ev.Data["command"])
		}
	case loop.EventParseWarning:
		fmt.Printf("[parse warning] %v\n", ev.Data["reason"])
	case loop.EventIterationEnd:
		fmt.Printf("[iteration %v complete, %v commands]\n", ev.Data["iteration"], ev.Data["commands"])
	case loop.EventLoopDetected:
		fmt.Printf("[loop detected] %v\n", ev.Data["message"])
	case loop.EventError:
		fmt.Printf("[error] %v\n", ev.Data["error"])
	}
}

// formatResultsPreview renders a compact view of an iteration's results for
// debug logging.
func formatResultsPreview(results []envelope.CommandResult) string {
	if len(results) == 0 {
		return "(no commands)"
	}
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
		if r.IsError {
			names[i] += "(error)"
		}
	}
	return strings.Join(names, ", ")
}
