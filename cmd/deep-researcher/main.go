package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-researcher/pkg/agent"
	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/mcpserver"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/research/tools"
	"github.com/mikeboe/deep-researcher/pkg/telemetry"
)

var llmProvider string

func main() {
	// stdout carries the result line only.
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Command execution failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// execute runs the command line. A failure the run command did not report
// itself, such as rejected arguments, still produces the JSON line.
func execute(ctx context.Context, args []string, stdout io.Writer) error {
	out := &lineWriter{w: stdout}
	rootCmd := newRootCmd()
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil && !out.written && (cmd == nil || cmd.Name() != "mcp") {
		writeResult(out, research.Result{}, err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "deep-researcher",
		Short:         "An iterative web research agent",
		Long:          `deep-researcher repeatedly searches the web, folds what it finds into a running summary and reflects on the gaps until its loop budget is spent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run <topic> [maxLoops] [model] [provider]",
		Short: "Research a topic and print the summary as one JSON line",
		Args:  cobra.RangeArgs(1, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				writeResult(cmd.OutOrStdout(), research.Result{}, err)
				return err
			}
			return runResearch(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
	runCmd.Flags().StringVarP(&llmProvider, "llm-provider", "p", "", "LLM backend: ollama, gemini, openai or anthropic (overrides LLM_PROVIDER)")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the research tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			factory := func(ctx context.Context, c config.Config) (*research.ResearchEngine, error) {
				return agent.NewEngine(ctx, c, slog.Default())
			}
			return mcpserver.NewResearcher(*cfg, factory, slog.Default()).Run(cmd.Context())
		},
	}

	rootCmd.AddCommand(runCmd, mcpCmd)
	return rootCmd
}

// lineWriter remembers whether anything reached stdout.
type lineWriter struct {
	w       io.Writer
	written bool
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.written = true
	return l.w.Write(p)
}

// loadConfig reads the environment and applies the positional overrides
// maxLoops, model and search provider.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if len(args) > 1 {
		n, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil {
			return nil, &research.ConfigurationError{Field: "max_loops", Value: args[1], Err: err}
		}
		cfg.MaxLoops = n
	}
	if len(args) > 2 && strings.TrimSpace(args[2]) != "" {
		cfg.LocalLLM = strings.TrimSpace(args[2])
	}
	if len(args) > 3 {
		kind, err := tools.ParseProviderKind(args[3])
		if err != nil {
			return nil, err
		}
		cfg.SearchAPI = kind
	}
	if llmProvider != "" {
		kind, err := clients.ParseKind(llmProvider)
		if err != nil {
			return nil, err
		}
		cfg.LLMProvider = kind
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runResearch(ctx context.Context, cfg *config.Config, topic string, out io.Writer) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{Enabled: cfg.Tracing})
	if err != nil {
		slog.Warn("Tracing disabled", "error", err)
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	engine, err := agent.NewEngine(ctx, *cfg, slog.Default())
	if err != nil {
		writeResult(out, research.Result{}, err)
		return err
	}

	result, err := engine.Run(ctx, topic)
	writeResult(out, result, err)
	return err
}

type output struct {
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeResult prints exactly one JSON line: the report on success, or the
// error with whatever partial summary the session had reached.
func writeResult(w io.Writer, result research.Result, err error) {
	var o output
	if err != nil {
		o.Error = err.Error()
		var sessErr *research.SessionError
		if errors.As(err, &sessErr) {
			o.Summary = sessErr.State.Summary
		}
	} else {
		o.Summary = result.Report
	}

	line, merr := json.Marshal(o)
	if merr != nil {
		line = []byte(`{"error":"failed to encode result"}`)
	}
	fmt.Fprintln(w, string(line))
}
