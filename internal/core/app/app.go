// Package app wires the ledger, processor and dispatcher into one synthesis run.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"yarasynth/internal/core/config"
	"yarasynth/internal/core/ports"
	"yarasynth/internal/data/ledger"
)

type App struct {
	Config     *config.Config
	Ledger     ports.DedupLedger
	Processor  *Processor
	Dispatcher *Dispatcher
}

// New opens the configured ledger and builds the pipeline. Close releases the ledger.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	return NewWithLedger(cfg, l)
}

// NewWithLedger builds the pipeline around an existing ledger.
func NewWithLedger(cfg *config.Config, l ports.DedupLedger) (*App, error) {
	p, err := NewProcessor(cfg, l)
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	return &App{
		Config:     cfg,
		Ledger:     l,
		Processor:  p,
		Dispatcher: NewDispatcher(cfg, l, p),
	}, nil
}

// Run synthesizes rules for every package under root. With watch set it keeps running until
// ctx is cancelled.
func (a *App) Run(ctx context.Context, root string, watch bool) (ports.RunSummary, error) {
	slog.Info("starting rule synthesis",
		"root", root,
		"output", a.Config.Yara.Directory,
		"threads", a.Dispatcher.threads,
		"watch", watch)
	if watch {
		return a.Dispatcher.Watch(ctx, root)
	}
	return a.Dispatcher.Run(ctx, root)
}

func (a *App) Close() error {
	if a == nil || a.Ledger == nil {
		return nil
	}
	return a.Ledger.Close()
}
