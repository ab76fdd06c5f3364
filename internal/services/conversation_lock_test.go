package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConversationLocksIndependentPerConversation(t *testing.T) {
	locks := newConversationLocks()

	unlockFirst := locks.Lock(1)

	// Another conversation proceeds while 1 is held.
	acquired := make(chan struct{})
	go func() {
		unlock := locks.Lock(65)
		close(acquired)
		unlock()
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on another conversation blocked")
	}

	waiting := make(chan struct{})
	go func() {
		unlock := locks.Lock(1)
		close(waiting)
		unlock()
	}()
	select {
	case <-waiting:
		t.Fatal("second holder acquired a locked conversation")
	case <-time.After(50 * time.Millisecond):
	}

	unlockFirst()
	select {
	case <-waiting:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}

	assert.Eventually(t, func() bool { return locks.size() == 0 }, time.Second, 10*time.Millisecond)
}
