package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps the latest report per source in process memory.
// It is safe for concurrent use by multiple goroutines.
//
// If TTL is configured, a background goroutine removes reports older than
// the TTL. Reports do not survive a restart; use RedisStore to share them
// between replicas.
type MemoryStore struct {
	mu            sync.RWMutex
	reports       map[string]Report
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryStore creates an in-memory report store with no TTL.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]Report),
	}
}

// NewMemoryStoreWithTTL creates an in-memory report store that drops reports
// older than ttl every cleanupInterval (a minute when not positive).
//
// Stop must be called when the store is no longer needed.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		reports:       make(map[string]Report),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// Stop shuts down the cleanup goroutine and blocks until it exits.
// Calling Stop multiple times or on a store without TTL does nothing.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopped {
		return
	}

	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl == 0 {
		return
	}

	now := time.Now()
	for key, report := range s.reports {
		if s.expired(report, now) {
			delete(s.reports, key)
		}
	}
}

func (s *MemoryStore) expired(report Report, now time.Time) bool {
	return s.ttl > 0 && now.Sub(report.GeneratedAt) > s.ttl
}

// Put stores a report, replacing any previous report for the same source.
func (s *MemoryStore) Put(ctx context.Context, report Report) error {
	if report.Source == "" {
		return fmt.Errorf("report source cannot be empty")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[SourceKey(report.Source)] = report
	return nil
}

// GetLatest returns the latest report for source. Reports past the TTL are
// reported as not found even before the cleanup goroutine removes them.
func (s *MemoryStore) GetLatest(ctx context.Context, source string) (Report, bool, error) {
	select {
	case <-ctx.Done():
		return Report{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	report, found := s.reports[SourceKey(source)]
	if !found || s.expired(report, time.Now()) {
		return Report{}, false, nil
	}
	return report, true, nil
}

// Len returns the number of reports currently stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Delete removes the report for source and reports whether one existed.
func (s *MemoryStore) Delete(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SourceKey(source)
	_, existed := s.reports[key]
	delete(s.reports, key)
	return existed
}
