package session

import (
	"sync"
	"time"

	"github.com/ForsunJay/TGTEST/internal/domain/wizard"
)

// Session is the conversational state of one user's in-progress wizard.
// At most one live session exists per user; the store enforces this.
type Session struct {
	UserID       int64
	Step         wizard.Step
	Draft        wizard.Draft
	Retries      int
	CreatedAt    time.Time
	LastActivity time.Time
}

// Store holds wizard sessions keyed by Telegram user id. Access to a
// given user's session is serialized through a per-user mutex so that
// near-simultaneous inputs from the same user are processed in arrival
// order; different users never contend.
type Store struct {
	mu          sync.Mutex
	sessions    map[int64]*Session
	userLocks   map[int64]*userLock
	idleTimeout time.Duration
	now         func() time.Time
}

// userLock is a per-user mutex with a count of holders and waiters. The
// entry is dropped from the store once the count reaches zero, so the
// map stays bounded by the number of in-flight Do calls.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates a session store. Sessions idle longer than idleTimeout
// are treated as absent on next access.
func NewStore(idleTimeout time.Duration) *Store {
	return &Store{
		sessions:    make(map[int64]*Session),
		userLocks:   make(map[int64]*userLock),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Handle gives exclusive access to one user's session slot while held
type Handle struct {
	store  *Store
	userID int64
}

// Do runs fn with the user's session slot locked. All wizard input
// handling for a user must go through Do.
func (s *Store) Do(userID int64, fn func(h *Handle) error) error {
	lock := s.acquire(userID)
	lock.mu.Lock()
	defer s.release(userID, lock)

	return fn(&Handle{store: s, userID: userID})
}

// Current returns the user's live session, or nil if none exists or the
// session has idled out (expired sessions are discarded here).
func (h *Handle) Current() *Session {
	s := h.store

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[h.userID]
	if !ok {
		return nil
	}

	if s.now().Sub(sess.LastActivity) > s.idleTimeout {
		delete(s.sessions, h.userID)
		return nil
	}

	sess.LastActivity = s.now()
	return sess
}

// StartNew atomically discards any live session for the user and installs
// a fresh one at the first wizard step.
func (h *Handle) StartNew() *Session {
	s := h.store
	now := s.now()

	sess := &Session{
		UserID:       h.userID,
		Step:         wizard.StepSelectProject,
		CreatedAt:    now,
		LastActivity: now,
	}

	s.mu.Lock()
	s.sessions[h.userID] = sess
	s.mu.Unlock()

	return sess
}

// Clear destroys the user's session, if any
func (h *Handle) Clear() {
	s := h.store
	s.mu.Lock()
	delete(s.sessions, h.userID)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// PurgeExpired drops sessions past the idle timeout and reports how many
// were removed. Intended to be called from a periodic ticker.
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for userID, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.idleTimeout {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

// acquire registers interest in one user's lock, creating it on first use
func (s *Store) acquire(userID int64) *userLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &userLock{}
		s.userLocks[userID] = lock
	}
	lock.refs++
	return lock
}

// release unlocks and forgets the lock once no holder or waiter remains.
// An entry is only deleted at zero refs, so a later Do always starts from
// a fresh, uncontended mutex.
func (s *Store) release(userID int64, lock *userLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.userLocks, userID)
	}
}
