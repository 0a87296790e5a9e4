package core

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultPrincipalCacheSize bounds the number of cached principal lookups.
const DefaultPrincipalCacheSize = 1024

type principalLookup struct {
	id string
	ok bool
}

// CachedDirectory memoizes PrincipalDirectory lookups, including misses.
// Lookup errors are never cached. The Service builds one per import or
// preview, so a cached miss never outlives the file that caused it.
type CachedDirectory struct {
	next  PrincipalDirectory
	cache *lru.Cache
}

// NewCachedDirectory wraps next with an LRU cache of the given size.
func NewCachedDirectory(next PrincipalDirectory, size int) (*CachedDirectory, error) {
	if size <= 0 {
		size = DefaultPrincipalCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedDirectory{next: next, cache: cache}, nil
}

// Resolve implements PrincipalDirectory.
func (d *CachedDirectory) Resolve(ctx context.Context, text string) (string, bool, error) {
	key := fold(strings.TrimSpace(text))
	if v, ok := d.cache.Get(key); ok {
		hit := v.(principalLookup)
		return hit.id, hit.ok, nil
	}

	id, ok, err := d.next.Resolve(ctx, text)
	if err != nil {
		return "", false, err
	}
	d.cache.Add(key, principalLookup{id: id, ok: ok})
	return id, ok, nil
}

// Len returns the number of cached lookups.
func (d *CachedDirectory) Len() int {
	return d.cache.Len()
}
