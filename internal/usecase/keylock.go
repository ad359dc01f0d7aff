package usecase

import "sync"

// KeyMutexes hands out one mutex per key. Mutexes are created lazily on first
// use and never removed, so a key always maps to the same mutex for the life
// of the process. Only the creation path takes the map-level lock; holders of
// a key mutex never contend with holders of a different key.
type KeyMutexes struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyMutexes() *KeyMutexes {
	return &KeyMutexes{locks: make(map[string]*sync.Mutex)}
}

// Get returns the mutex for key, creating it if needed.
func (k *KeyMutexes) Get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}
