// Package sharedmemory implements C1: a process-wide concurrent keyed
// store with optional TTL. It is the only mutable process-wide state
// LayerAgents may read — writes are confined to the Orchestrator,
// LearningEngine, EvolutionEngine, and DataLifecycleAgent (§5).
//
// Grounded on the teacher's internal/router.HealthRegistry (RWMutex-guarded
// map with a dirty flag) and internal/scheduler.Scheduler's
// ticker-over-context sweeper goroutine.
package sharedmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clawinfra/growthkernel/internal/kerrors"
	"github.com/clawinfra/growthkernel/internal/types"
)

const sweepInterval = 60 * time.Second

// SignalKeyPrefix namespaces every raw P0 types.Signal the Orchestrator
// persists, so GetRecentSignals can scan just those entries instead of
// every key in the store. Synthesized types.CrossQuadrantSignal values
// are stored separately under "signal:" and are never returned here.
const SignalKeyPrefix = "signal:raw:"

type entry struct {
	value     interface{}
	storedAt  time.Time
	expiresAt *time.Time
}

func (e *entry) expired(now time.Time) bool {
	return e.expiresAt != nil && now.After(*e.expiresAt)
}

// SharedMemory is the concurrent key-value store described in §4.1.
type SharedMemory struct {
	mu     sync.RWMutex
	data   map[string]*entry
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a SharedMemory instance and starts its expiry sweeper. Call
// Stop to release the sweeper goroutine.
func New(logger *slog.Logger) *SharedMemory {
	if logger == nil {
		logger = slog.Default()
	}
	sm := &SharedMemory{
		data:   make(map[string]*entry),
		logger: logger.With("component", "sharedmemory"),
		done:   make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	sm.cancel = cancel
	go sm.sweepLoop(ctx)
	return sm
}

// Stop halts the background sweeper.
func (sm *SharedMemory) Stop() {
	if sm.cancel != nil {
		sm.cancel()
	}
	<-sm.done
}

func (sm *SharedMemory) sweepLoop(ctx context.Context) {
	defer close(sm.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := sm.ClearExpired()
			if n > 0 {
				sm.logger.Debug("swept expired entries", "count", n)
			}
		}
	}
}

// Store writes value under key. ttl of zero means no expiry.
func (sm *SharedMemory) Store(key string, value interface{}, ttl time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	e := &entry{value: value, storedAt: time.Now()}
	if ttl > 0 {
		exp := e.storedAt.Add(ttl)
		e.expiresAt = &exp
	}
	sm.data[key] = e
}

// Get retrieves a value. Returns kerrors.ErrNotFound if the key is absent
// or has expired — an expired entry is lazily removed on access and is
// never returned.
func (sm *SharedMemory) Get(key string) (interface{}, error) {
	sm.mu.RLock()
	e, ok := sm.data[key]
	sm.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("key %q: %w", key, kerrors.ErrNotFound)
	}

	now := time.Now()
	if e.expired(now) {
		sm.mu.Lock()
		delete(sm.data, key)
		sm.mu.Unlock()
		return nil, fmt.Errorf("key %q: %w", key, kerrors.ErrNotFound)
	}
	return e.value, nil
}

// Delete removes a key unconditionally.
func (sm *SharedMemory) Delete(key string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.data, key)
}

// ClearExpired removes all expired entries and returns the count removed.
func (sm *SharedMemory) ClearExpired() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	count := 0
	for k, e := range sm.data {
		if e.expired(now) {
			delete(sm.data, k)
			count++
		}
	}
	return count
}

// GetRecentSignals returns all stored raw Signal values (keyed under
// SignalKeyPrefix) whose Timestamp falls within window of now, sorted by
// timestamp descending.
func (sm *SharedMemory) GetRecentSignals(window time.Duration) []types.Signal {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	now := time.Now()
	cutoff := now.Add(-window)
	out := make([]types.Signal, 0)
	for k, e := range sm.data {
		if !strings.HasPrefix(k, SignalKeyPrefix) {
			continue
		}
		if e.expired(now) {
			continue
		}
		sig, ok := e.value.(types.Signal)
		if !ok {
			continue
		}
		if sig.Timestamp.After(cutoff) {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
