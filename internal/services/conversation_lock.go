package services

import "sync"

// conversationLocks hands out one mutex per conversation id. Entries live
// only while someone holds or waits for them.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[int64]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[int64]*conversationLock)}
}

// Lock blocks until conversationID is free and returns the unlock func.
func (l *conversationLocks) Lock(conversationID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[conversationID]
	if !ok {
		lock = &conversationLock{}
		l.locks[conversationID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, conversationID)
		}
		l.mu.Unlock()
	}
}

func (l *conversationLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
