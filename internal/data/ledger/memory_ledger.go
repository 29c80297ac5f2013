// Package ledger implements the dedup ledger that guarantees each package root hash is
// processed at most once.
package ledger

import (
	"context"
	"strings"
	"sync"

	domainerrors "yarasynth/internal/core/errors"
	"yarasynth/internal/core/ports"
)

var _ ports.DedupLedger = (*MemoryLedger)(nil)

// MemoryLedger keeps admitted hashes for the lifetime of the process.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

func (l *MemoryLedger) Admit(_ context.Context, hash string) (bool, error) {
	key, err := normalizeHash(hash)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, hash string) error {
	key, err := normalizeHash(hash)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, key)
	return nil
}

// Len returns the number of admitted hashes.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func (l *MemoryLedger) Close() error { return nil }

func normalizeHash(hash string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(hash))
	if key == "" {
		return "", domainerrors.New(domainerrors.CodeValidationError, "root hash must not be empty")
	}
	return key, nil
}
