// Package ledger keeps the deduplicated attendance log. The in-memory state
// is authoritative; a Store receives appends as a side effect and its
// failures never corrupt what is already recorded.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Record is one attendance event. At most one record exists per
// (identity, session key) pair.
type Record struct {
	Identity   string    `json:"identity"`
	SessionKey string    `json:"session_key"`
	RecordedAt time.Time `json:"recorded_at"`
}

// StoreError wraps a persistence failure. The in-memory ledger state is
// intact when a StoreError is returned; callers surface it as a warning.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store is the append-only persistence sink behind the ledger. Load is used
// once at startup to warm the dedup state from previous runs, so "never
// recorded twice" holds across process restarts.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Load(ctx context.Context) ([]Record, error)
	Clear(ctx context.Context) error
}

// Ledger tracks which identities have been recorded per session key.
// All methods are safe for concurrent use; TryRecord's check-then-insert
// runs under a single critical section so the at-most-once guarantee holds
// even with multiple sessions sharing one ledger.
type Ledger struct {
	mu      sync.Mutex
	records []Record
	seen    map[string]int // dedupKey -> index into records
	store   Store
}

// New creates a ledger backed by the given store. A nil store keeps the
// ledger purely in-memory.
func New(store Store) *Ledger {
	return &Ledger{
		seen:  make(map[string]int),
		store: store,
	}
}

// Warm loads previously persisted records into the dedup state. Insertion
// order of the stored log is preserved.
func (l *Ledger) Warm(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	records, err := l.store.Load(ctx)
	if err != nil {
		return &StoreError{Op: "load", Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range records {
		key := dedupKey(rec.Identity, rec.SessionKey)
		if _, ok := l.seen[key]; ok {
			continue
		}
		l.seen[key] = len(l.records)
		l.records = append(l.records, rec)
	}
	return nil
}

// TryRecord records attendance for (identity, sessionKey) if not already
// present. It returns the record and whether it was newly created; repeating
// the call is an idempotent no-op returning the existing record with its
// original timestamp. A non-nil error is always a *StoreError: the memory
// commit has already happened and stands.
func (l *Ledger) TryRecord(ctx context.Context, identity, sessionKey string, now time.Time) (Record, bool, error) {
	key := dedupKey(identity, sessionKey)

	l.mu.Lock()
	if i, ok := l.seen[key]; ok {
		rec := l.records[i]
		l.mu.Unlock()
		return rec, false, nil
	}
	rec := Record{Identity: identity, SessionKey: sessionKey, RecordedAt: now}
	l.seen[key] = len(l.records)
	l.records = append(l.records, rec)
	l.mu.Unlock()

	// Memory first, store second. A failed append is reported, not retried,
	// and does not undo the in-memory record.
	if l.store != nil {
		if err := l.store.Append(ctx, rec); err != nil {
			return rec, true, &StoreError{Op: "append", Err: err}
		}
	}
	return rec, true, nil
}

// Export returns records in insertion order. An empty sessionKey returns
// everything; otherwise only records for that session.
func (l *Ledger) Export(sessionKey string) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		if sessionKey != "" && rec.SessionKey != sessionKey {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Count returns the total number of records.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear wipes all records. The memory wipe is immediate and unconditional;
// a store failure is reported as a *StoreError after the fact.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.records = nil
	l.seen = make(map[string]int)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Clear(ctx); err != nil {
			return &StoreError{Op: "clear", Err: err}
		}
	}
	return nil
}

func dedupKey(identity, sessionKey string) string {
	return identity + "\x00" + sessionKey
}
