package core

import (
	"hash/fnv"
	"sort"
	"sync"
)

// DefaultLockStripes is the number of mutexes a KeyLocker spreads keys over.
const DefaultLockStripes = 256

// KeyLocker serializes writes that share a key (a record id or natural key).
// Keys hash onto a fixed set of mutexes; unrelated keys may share a stripe,
// which only costs concurrency.
type KeyLocker struct {
	stripes []sync.Mutex
}

// NewKeyLocker creates a locker with n stripes.
func NewKeyLocker(n int) *KeyLocker {
	if n <= 0 {
		n = DefaultLockStripes
	}
	return &KeyLocker{stripes: make([]sync.Mutex, n)}
}

// Lock acquires every stripe covering keys and returns the matching unlock.
// Stripes are taken in ascending order so overlapping calls cannot deadlock.
func (l *KeyLocker) Lock(keys ...string) (unlock func()) {
	idx := make([]int, 0, len(keys))
	seen := make(map[int]bool, len(keys))
	for _, k := range keys {
		i := l.stripe(k)
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)

	for _, i := range idx {
		l.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}

func (l *KeyLocker) stripe(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.stripes)))
}
