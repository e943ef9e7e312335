package session

import (
	"sync"
	"testing"
	"time"

	"github.com/ForsunJay/TGTEST/internal/domain/wizard"
)

func TestStore_StartNewReplacesLiveSession(t *testing.T) {
	store := NewStore(time.Minute)

	var first, second *Session
	_ = store.Do(42, func(h *Handle) error {
		first = h.StartNew()
		first.Step = wizard.StepEnterAmount
		second = h.StartNew()
		return nil
	})

	if second == first {
		t.Fatal("StartNew() should install a fresh session")
	}
	if second.Step != wizard.StepSelectProject {
		t.Errorf("fresh session step = %v, want %v", second.Step, wizard.StepSelectProject)
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d sessions for one user, want 1", store.Len())
	}
}

func TestStore_CurrentReturnsNilWithoutSession(t *testing.T) {
	store := NewStore(time.Minute)

	_ = store.Do(7, func(h *Handle) error {
		if h.Current() != nil {
			t.Error("Current() = non-nil for user with no session")
		}
		return nil
	})
}

func TestStore_IdleTimeoutDiscardsSession(t *testing.T) {
	store := NewStore(time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	_ = store.Do(7, func(h *Handle) error {
		h.StartNew()
		return nil
	})

	current = current.Add(2 * time.Minute)

	_ = store.Do(7, func(h *Handle) error {
		if h.Current() != nil {
			t.Error("Current() returned an idled-out session")
		}
		return nil
	})

	if store.Len() != 0 {
		t.Errorf("expired session not discarded, store.Len() = %d", store.Len())
	}
}

func TestStore_PurgeExpired(t *testing.T) {
	store := NewStore(time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	for _, userID := range []int64{1, 2, 3} {
		_ = store.Do(userID, func(h *Handle) error {
			h.StartNew()
			return nil
		})
	}

	current = current.Add(90 * time.Second)
	_ = store.Do(3, func(h *Handle) error {
		h.StartNew()
		return nil
	})

	if removed := store.PurgeExpired(); removed != 2 {
		t.Errorf("PurgeExpired() = %d, want 2", removed)
	}
	if store.Len() != 1 {
		t.Errorf("store.Len() = %d after purge, want 1", store.Len())
	}
}

func TestStore_AtMostOneSessionPerUser(t *testing.T) {
	store := NewStore(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Do(99, func(h *Handle) error {
				if h.Current() == nil {
					h.StartNew()
				}
				return nil
			})
		}()
	}
	wg.Wait()

	if store.Len() != 1 {
		t.Errorf("store.Len() = %d after concurrent starts, want 1", store.Len())
	}
}

func TestStore_LockEntriesDoNotAccumulate(t *testing.T) {
	store := NewStore(time.Minute)

	var wg sync.WaitGroup
	for userID := int64(1); userID <= 50; userID++ {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_ = store.Do(id, func(h *Handle) error {
					h.StartNew()
					h.Clear()
					return nil
				})
			}(userID)
		}
	}
	wg.Wait()

	store.mu.Lock()
	locks := len(store.userLocks)
	store.mu.Unlock()
	if locks != 0 {
		t.Errorf("%d lock entries left after all Do calls returned, want 0", locks)
	}
}

func TestStore_DoSerializesPerUser(t *testing.T) {
	store := NewStore(time.Minute)

	var order []int
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			_ = store.Do(5, func(h *Handle) error {
				// Appends race unless Do serializes per user
				order = append(order, n)
				return nil
			})
		}(i)
	}

	close(start)
	wg.Wait()

	if len(order) != 10 {
		t.Errorf("recorded %d entries, want 10 (lost update under concurrency)", len(order))
	}
}
