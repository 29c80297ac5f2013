package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"yarasynth/internal/core/ports"
	"yarasynth/internal/core/watcher"
)

// hiddenDirs keeps scratch directories of upstream writers out of the watch set.
var hiddenDirs = []string{".*"}

// Watch processes the packages already under root, then keeps enqueueing package directories
// whose manifest appears or changes until ctx is cancelled. Cancellation is a normal exit.
func (d *Dispatcher) Watch(ctx context.Context, root string) (ports.RunSummary, error) {
	summary, err := d.run(ctx, root, func(ctx context.Context, q ports.JobQueue, initial []string) error {
		w, err := watcher.NewWatcher(d.debounce, d.manifest, hiddenDirs, func(dirs []string) {
			sort.Strings(dirs)
			for _, dir := range dirs {
				if err := d.push(ctx, q, dir); err != nil {
					slog.Debug("dropping package change", "dir", dir, "error", err)
				}
			}
		})
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Watch(root); err != nil {
			return err
		}

		// Packages that landed between discovery and the watch registration.
		seen := make(map[string]struct{}, len(initial))
		for _, dir := range initial {
			seen[dir] = struct{}{}
		}
		current, err := Discover(root, d.manifest)
		if err != nil {
			return err
		}
		for _, dir := range current {
			if _, ok := seen[dir]; ok {
				continue
			}
			if err := d.push(ctx, q, dir); err != nil {
				return err
			}
		}

		slog.Info("watching for new packages", "root", root)
		<-ctx.Done()
		return nil
	})
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}
	return summary, err
}
