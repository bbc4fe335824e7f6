package tracker

import (
	"context"
	"sync"
)

// Locker serialises work per device id. Release must be called exactly
// once after a successful Acquire.
type Locker interface {
	Acquire(ctx context.Context, deviceID int64) (release func(), err error)
}

// KeyedMutex hands out one mutex per device id. Entries are dropped once
// no goroutine holds or waits for them, so the map only grows with the
// number of devices being written concurrently.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[int64]*keyedEntry{}}
}

func (k *KeyedMutex) Acquire(ctx context.Context, deviceID int64) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[deviceID]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[deviceID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.drop(deviceID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.drop(deviceID, e)
		})
	}, nil
}

func (k *KeyedMutex) drop(deviceID int64, e *keyedEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, deviceID)
	}
	k.mu.Unlock()
}

// size is the number of live entries; used by tests.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// chain acquires every locker in order and releases in reverse.
type chain []Locker

func (c chain) Acquire(ctx context.Context, deviceID int64) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		release, err := l.Acquire(ctx, deviceID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
