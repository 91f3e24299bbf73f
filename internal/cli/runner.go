package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZhaohnNwafu/Autom6A/internal/checkpoint"
	"github.com/ZhaohnNwafu/Autom6A/internal/config"
	vlog "github.com/ZhaohnNwafu/Autom6A/internal/log"
	"github.com/ZhaohnNwafu/Autom6A/internal/pipeline"
	"github.com/ZhaohnNwafu/Autom6A/internal/proc"
	"github.com/ZhaohnNwafu/Autom6A/internal/runtime"
	"github.com/ZhaohnNwafu/Autom6A/internal/stage"
)

// executePipeline is the shared entry point for the run and resume commands.
func executePipeline(cmd *cobra.Command, requireCheckpoint bool) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return &pipeline.ConfigError{Err: err}
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return &pipeline.ConfigError{Err: fmt.Errorf("invalid config: %w", err)}
	}

	if err := os.MkdirAll(cfg.OutputRoot, 0o755); err != nil {
		return fmt.Errorf("creating output root: %w", err)
	}

	logFile := openLogFile(cfg.OutputRoot)
	vlog.Init(cfg.LogLevel, logFile)
	if logFile != nil {
		defer logFile.Close()
	}

	registry, err := stage.New(cfg)
	if err != nil {
		return &pipeline.ConfigError{Err: err}
	}

	resolver, err := runtime.NewResolver(cfg.Contexts, cfg.OutputRoot)
	if err != nil {
		return &pipeline.ConfigError{Err: err}
	}

	store := checkpoint.NewStore(cfg.OutputRoot)
	release, err := store.Acquire()
	if err != nil {
		return err
	}
	defer release()

	if requireCheckpoint {
		st, err := store.Load(cfg.RunID)
		if err != nil {
			return err
		}
		if st == nil {
			return &pipeline.ConfigError{
				Err: fmt.Errorf("no checkpoint found under %s, nothing to resume", cfg.OutputRoot)}
		}
		// Resume reuses the checkpointed run id even when none was given.
		cfg.RunID = st.RunID
	}

	// Cancellation propagates through the context to the active child
	// process group; the engine persists state before returning.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := &pipeline.Engine{
		Config:   cfg,
		Stages:   registry.OrderedStages(),
		Resolver: resolver,
		Runner:   &proc.Runner{TailBytes: cfg.EffectiveTailBytes()},
		Store:    store,
		Display:  pipeline.NewDisplay(flagVerbose),
	}

	execErr := engine.Execute(ctx)
	if engine.State != nil {
		fmt.Println()
		pipeline.WriteReport(os.Stdout, engine.State)
	}
	return execErr
}

func applyFlagOverrides(cfg *config.Config) {
	if flagRunID != "" {
		cfg.RunID = flagRunID
	}
	if flagSignalDir != "" {
		cfg.SignalDir = flagSignalDir
	}
	if flagReference != "" {
		cfg.Reference = flagReference
	}
	if flagOutput != "" {
		cfg.OutputRoot = flagOutput
	}
	if flagThreads > 0 {
		cfg.Threads = flagThreads
	}
	if flagTimeout != "" {
		cfg.StageTimeout = flagTimeout
	}
	if flagAttempts > 0 {
		cfg.MaxAttempts = flagAttempts
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}
}

func openLogFile(root string) *os.File {
	f, err := os.OpenFile(filepath.Join(root, "autom6a.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return f
}
