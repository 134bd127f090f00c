package curation

import (
	"sync"

	"github.com/cosmik-network/cardsync/internal/domain"
)

// KeyedMutex serializes work per key. Entries are dropped once no goroutine
// holds or waits on them. Locks are not reentrant.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			k.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// CardKey is the lock key of a card aggregate.
func CardKey(id domain.CardID) string { return "card:" + string(id) }

// CollectionKey is the lock key of a collection aggregate.
func CollectionKey(id domain.CollectionID) string { return "collection:" + string(id) }

// URLKey serializes card creation for one curator and url.
func URLKey(curator domain.CuratorID, url domain.URL) string {
	return "url:" + string(curator) + ":" + string(url)
}
