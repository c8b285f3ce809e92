package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/deepnoodle-ai/agent"
	"github.com/deepnoodle-ai/agent/badger"
	"github.com/deepnoodle-ai/agent/config"
	"github.com/deepnoodle-ai/agent/llm"
	"github.com/deepnoodle-ai/agent/postgres"
	"github.com/deepnoodle-ai/agent/telemetry"
	"github.com/deepnoodle-ai/agent/tools"
	"github.com/fatih/color"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app holds everything built from the configuration. Close releases it.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	checkpointer agent.Checkpointer
	closers      []io.Closer
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	if err := a.openCheckpointer(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
	}
	return agent.NewLoggerWithLevel(level), nil
}

func (a *app) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *app) openCheckpointer(ctx context.Context) error {
	cfg := a.cfg.Checkpoints
	opts := agent.CheckpointManagerOptions{
		MaxCheckpoints:     cfg.MaxCheckpoints,
		DisableCompression: !cfg.Compression,
		Logger:             a.logger,
	}
	switch cfg.Backend {
	case config.BackendNone:
		a.checkpointer = agent.NewNullCheckpointer()
	case config.BackendFile:
		manager, err := agent.NewFileCheckpointManager(cfg.Dir, opts)
		if err != nil {
			return err
		}
		a.checkpointer = manager
	case config.BackendBadger:
		dir := cfg.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			dir = filepath.Join(home, ".deepnoodle", "agent", "badger")
		}
		manager, store, err := badger.NewCheckpointManager(badger.Config{Path: dir, Logger: a.logger}, opts)
		if err != nil {
			return err
		}
		a.checkpointer = manager
		a.closers = append(a.closers, store)
	case config.BackendPostgres:
		manager, store, err := postgres.NewCheckpointManager(ctx, cfg.DSN, opts)
		if err != nil {
			return err
		}
		a.checkpointer = manager
		a.closers = append(a.closers, store)
	default:
		return fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
	return nil
}

// manager returns the checkpoint manager, for the commands that inspect
// stored checkpoints.
func (a *app) manager() (*agent.CheckpointManager, error) {
	manager, ok := a.checkpointer.(*agent.CheckpointManager)
	if !ok {
		return nil, fmt.Errorf("checkpoint backend %q does not store checkpoints", a.cfg.Checkpoints.Backend)
	}
	return manager, nil
}

// toolOptions maps the tools section of the config to tool options. Web
// search is skipped with a warning when no API key is configured.
func (a *app) toolOptions() (tools.Options, error) {
	cfg := a.cfg.Tools
	var opts tools.Options
	if cfg.Calculator.Enabled {
		opts.Calculator = &tools.CalculatorOptions{
			Engine:    cfg.Calculator.Engine,
			Precision: cfg.Calculator.Precision,
		}
	}
	if cfg.FileHandler.Enabled {
		opts.Files = &tools.FileOptions{
			BaseDir:           cfg.FileHandler.BaseDir,
			AllowedExtensions: cfg.FileHandler.AllowedExtensions,
			MaxReadChars:      cfg.FileHandler.MaxReadChars,
		}
	}
	if cfg.WebSearch.Enabled {
		if cfg.WebSearch.APIKey == "" {
			a.logger.Warn("web search is enabled but TAVILY_API_KEY is not set; skipping")
		} else {
			opts.WebSearch = &tools.WebSearchOptions{
				APIKey:     cfg.WebSearch.APIKey,
				MaxResults: cfg.WebSearch.MaxResults,
			}
		}
	}
	if cfg.RAGSearch.Enabled {
		searcher, err := tools.NewKeywordSearcher(cfg.RAGSearch.Dir)
		if err != nil {
			return opts, err
		}
		a.logger.Info("indexed documents", "dir", cfg.RAGSearch.Dir, "chunks", searcher.Len())
		opts.RAGSearch = &tools.RAGSearchOptions{
			Searcher:       searcher,
			TopK:           cfg.RAGSearch.TopK,
			ScoreThreshold: cfg.RAGSearch.ScoreThreshold,
		}
	}
	return opts, nil
}

func (a *app) registry() (*agent.ToolRegistry, error) {
	opts, err := a.toolOptions()
	if err != nil {
		return nil, err
	}
	list, err := tools.New(opts)
	if err != nil {
		return nil, err
	}
	return agent.NewToolRegistry(list...)
}

func (a *app) model() (agent.Model, error) {
	cfg := a.cfg.Model
	model, err := llm.NewOpenAIModel(llm.OpenAIOptions{
		APIKey:      cfg.APIKey,
		Model:       cfg.Name,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		MaxRetries:  cfg.MaxRetries,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		Logger:      a.logger,
	})
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerMinute > 0 {
		return llm.RateLimited(model, cfg.RequestsPerMinute, 1), nil
	}
	return model, nil
}

// driver assembles a Driver that prints steps to out. The returned shutdown
// function flushes traces.
func (a *app) driver(out io.Writer) (*agent.Driver, func(context.Context) error, error) {
	registry, err := a.registry()
	if err != nil {
		return nil, nil, err
	}
	model, err := a.model()
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(telemetry.NewLogExporter(a.logger)),
	)
	callbacks := agent.NewCallbackChain(
		telemetry.NewTracingCallbacks(tp),
		newSummaryCallbacks(out),
	)

	var toolLogger agent.ToolLogger = agent.NewNullToolLogger()
	if dir := a.cfg.Logging.ToolLogDir; dir != "" {
		toolLogger = agent.NewFileToolLogger(dir)
		color.New(color.FgBlue).Fprintf(out, "Tool logs: %s\n", dir)
	}

	d, err := agent.NewDriver(agent.DriverOptions{
		Model:           model,
		Tools:           registry,
		Checkpointer:    a.checkpointer,
		Logger:          a.logger,
		Formatter:       newConsoleFormatter(out),
		Callbacks:       callbacks,
		ToolLogger:      toolLogger,
		MaxIterations:   a.cfg.Agent.MaxIterations,
		CheckpointEvery: a.cfg.Agent.CheckpointEvery,
		ModelTimeout:    a.cfg.Model.Timeout,
		ToolTimeout:     a.cfg.Agent.ToolTimeout,
		Instructions:    a.cfg.Agent.Instructions,
	})
	if err != nil {
		return nil, nil, err
	}
	return d, tp.Shutdown, nil
}
