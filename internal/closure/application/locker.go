package application

import (
	"context"
	"sync"
)

// PointOfSaleLocker serializes closures per point of sale inside one process.
type PointOfSaleLocker struct {
	mu    sync.Mutex
	locks map[string]*posLock
}

type posLock struct {
	ch   chan struct{}
	refs int
}

// NewPointOfSaleLocker constructs a locker.
func NewPointOfSaleLocker() *PointOfSaleLocker {
	return &PointOfSaleLocker{locks: make(map[string]*posLock)}
}

// Lock blocks until the point of sale is free or ctx is done. The returned
// func releases the lock.
func (l *PointOfSaleLocker) Lock(ctx context.Context, pointOfSaleID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[pointOfSaleID]
	if !ok {
		lock = &posLock{ch: make(chan struct{}, 1)}
		l.locks[pointOfSaleID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lock.ch
				l.release(pointOfSaleID, lock)
			})
		}, nil
	case <-ctx.Done():
		l.release(pointOfSaleID, lock)
		return nil, ctx.Err()
	}
}

func (l *PointOfSaleLocker) release(pointOfSaleID string, lock *posLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, pointOfSaleID)
	}
}
