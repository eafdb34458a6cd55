package conversion

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyedMutex serializes work per key. Entries are dropped once nobody holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem     *semaphore.Weighted
	waiters int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*keyedLock{}}
}

// Lock waits until key is free or ctx is done. On success it returns the matching unlock function.
func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{sem: semaphore.NewWeighted(1)}
		k.locks[key] = l
	}
	l.waiters++
	k.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		k.forget(key, l)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		l.sem.Release(1)
		k.forget(key, l)
		return nil, err
	}
	return func() {
		l.sem.Release(1)
		k.forget(key, l)
	}, nil
}

func (k *keyedMutex) forget(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.waiters--
	if l.waiters == 0 {
		delete(k.locks, key)
	}
}
