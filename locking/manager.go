/*
Package locking provides lease-based entity locks.

PURPOSE:
  Prevents two actors from making destructive edits to the same record at
  the same time. A lock is a time-bounded lease on an (entity_type,
  entity_id) pair: it is granted to one holder, refreshed by re-acquisition,
  released explicitly, and silently superseded once expired.

INVARIANTS:
  1. At most one active (non-expired) lock per (entity_type, entity_id)
  2. Re-acquisition by the current holder refreshes, never duplicates
  3. Release is idempotent: releasing a lock you do not hold is a no-op
  4. Expired locks are treated as absent

LIFECYCLE:
  The Manager is a process-scoped registry, injected into request handlers
  rather than referenced as ambient state. Start() launches a background
  sweep that drops expired leases; Stop() shuts it down. The sweep is an
  optimization only - every read already treats expired locks as absent.

USAGE:
  locks := locking.NewManager(5 * time.Minute)
  locks.Start()
  defer locks.Stop()

  res, err := locks.Acquire("invoice", "inv-1", "Alice")
  if err != nil {
      var held *locking.HeldError
      errors.As(err, &held) // held.Holder, held.ExpiresAt for the UI
  }
*/
package locking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the lease duration granted on acquisition when the Manager
// is built without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// ErrLockHeld is returned when an active lock is held by a different actor.
var ErrLockHeld = errors.New("lock held by another user")

// HeldError carries the current holder's identity and lease expiry so the
// caller can show "locked by X until Y".
type HeldError struct {
	EntityType string
	EntityID   string
	Holder     string
	ExpiresAt  time.Time
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s %s locked by %s until %s",
		e.EntityType, e.EntityID, e.Holder, e.ExpiresAt.Format(time.RFC3339))
}

func (e *HeldError) Unwrap() error { return ErrLockHeld }

// Lock is a lease record.
type Lock struct {
	ID         string
	EntityType string
	EntityID   string
	LockedBy   string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// AcquireResult reports whether acquisition created a fresh lease or
// refreshed an existing one. Exactly one of Created/Refreshed is true.
type AcquireResult struct {
	Lock      Lock
	Created   bool
	Refreshed bool
}

type lockKey struct {
	entityType string
	entityID   string
}

// Manager is the process-scoped lock registry.
type Manager struct {
	mu     sync.Mutex
	locks  map[lockKey]*Lock
	byID   map[string]lockKey
	ttl    time.Duration
	now    func() time.Time
	nextID func() string

	sweepInterval time.Duration
	ticker        *time.Ticker
	stop          chan struct{}
	wg            sync.WaitGroup
	started       bool
}

// NewManager creates a registry granting leases of the given TTL.
// A non-positive TTL falls back to DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		locks:         make(map[lockKey]*Lock),
		byID:          make(map[string]lockKey),
		ttl:           ttl,
		now:           time.Now,
		nextID:        uuid.NewString,
		sweepInterval: 30 * time.Second,
	}
}

// TTL returns the lease duration granted on acquisition.
func (m *Manager) TTL() time.Duration { return m.ttl }

// SetSweepInterval overrides the background sweep cadence. Must be called
// before Start.
func (m *Manager) SetSweepInterval(d time.Duration) {
	if d > 0 {
		m.sweepInterval = d
	}
}

// Acquire grants or refreshes a lease.
//
// No active lock:              create, return Created.
// Active lock, same holder:    extend expiry, return Refreshed.
// Active lock, other holder:   fail with *HeldError.
// Expired lock:                treated as absent, silently replaced.
func (m *Manager) Acquire(entityType, entityID, holder string) (AcquireResult, error) {
	if entityType == "" || entityID == "" || holder == "" {
		return AcquireResult{}, fmt.Errorf("locking: entity type, entity id and holder are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := lockKey{entityType, entityID}

	if existing, ok := m.locks[k]; ok && existing.ExpiresAt.After(now) {
		if existing.LockedBy != holder {
			return AcquireResult{}, &HeldError{
				EntityType: entityType,
				EntityID:   entityID,
				Holder:     existing.LockedBy,
				ExpiresAt:  existing.ExpiresAt,
			}
		}
		existing.ExpiresAt = now.Add(m.ttl)
		return AcquireResult{Lock: *existing, Refreshed: true}, nil
	}

	lock := &Lock{
		ID:         m.nextID(),
		EntityType: entityType,
		EntityID:   entityID,
		LockedBy:   holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if old, ok := m.locks[k]; ok {
		delete(m.byID, old.ID)
	}
	m.locks[k] = lock
	m.byID[lock.ID] = k
	return AcquireResult{Lock: *lock, Created: true}, nil
}

// Release deletes a lease by lock id. Releasing a lock that no longer
// exists, has expired, or belongs to another holder is a no-op success;
// clients retry releases after their own timeout.
func (m *Manager) Release(lockID, holder string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.byID[lockID]
	if !ok {
		return
	}
	lock := m.locks[k]
	if lock == nil || lock.LockedBy != holder {
		return
	}
	delete(m.locks, k)
	delete(m.byID, lockID)
}

// ReleaseEntity releases whatever lease the holder has on the entity.
// Idempotent like Release.
func (m *Manager) ReleaseEntity(entityType, entityID, holder string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := lockKey{entityType, entityID}
	lock, ok := m.locks[k]
	if !ok || lock.LockedBy != holder {
		return
	}
	delete(m.locks, k)
	delete(m.byID, lock.ID)
}

// Check is a read-only status query. It never mutates the registry.
// Returns (nil, false) when no active lock exists.
func (m *Manager) Check(entityType, entityID string) (*Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[lockKey{entityType, entityID}]
	if !ok || !lock.ExpiresAt.After(m.now()) {
		return nil, false
	}
	cp := *lock
	return &cp, true
}

// HeldByAnother returns a *HeldError when an active lease on the entity is
// held by someone other than actor, nil otherwise. Mutating operations use
// this as their precondition gate so the lock check happens at mutation
// time, not only when the editor was opened.
func (m *Manager) HeldByAnother(entityType, entityID, actor string) error {
	lock, ok := m.Check(entityType, entityID)
	if !ok || lock.LockedBy == actor {
		return nil
	}
	return &HeldError{
		EntityType: entityType,
		EntityID:   entityID,
		Holder:     lock.LockedBy,
		ExpiresAt:  lock.ExpiresAt,
	}
}

// =============================================================================
// EXPIRY SWEEP
// =============================================================================

// Start launches the background sweep that removes expired leases.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.ticker = time.NewTicker(m.sweepInterval)
	m.stop = make(chan struct{})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.ticker.C:
				m.sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop shuts the sweep down and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.ticker.Stop()
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, lock := range m.locks {
		if !lock.ExpiresAt.After(now) {
			delete(m.locks, k)
			delete(m.byID, lock.ID)
		}
	}
}
