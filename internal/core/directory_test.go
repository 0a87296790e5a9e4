package core

import (
	"context"
	"testing"
)

func TestCachedDirectory(t *testing.T) {
	ctx := context.Background()
	next := newFakeDirectory(map[string]string{"Jane Doe": janeID})

	d, err := NewCachedDirectory(next, 8)
	if err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"Jane Doe", "jane doe", " JANE DOE "} {
		id, ok, err := d.Resolve(ctx, text)
		if err != nil || !ok || id != janeID {
			t.Errorf("Resolve(%q) = (%q, %v, %v)", text, id, ok, err)
		}
	}
	if next.Calls() != 1 {
		t.Errorf("directory calls = %d, want 1", next.Calls())
	}

	// Misses are cached too.
	for i := 0; i < 3; i++ {
		if _, ok, _ := d.Resolve(ctx, "Nobody"); ok {
			t.Error("Nobody should not resolve")
		}
	}
	if next.Calls() != 2 {
		t.Errorf("directory calls = %d, want 2", next.Calls())
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}

func TestCachedDirectoryErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	next := newFakeDirectory(map[string]string{"Jane Doe": janeID})
	next.failing = true

	d, err := NewCachedDirectory(next, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := d.Resolve(ctx, "Jane Doe"); err == nil {
		t.Fatal("expected error")
	}

	next.mu.Lock()
	next.failing = false
	next.mu.Unlock()

	id, ok, err := d.Resolve(ctx, "Jane Doe")
	if err != nil || !ok || id != janeID {
		t.Errorf("after recovery Resolve = (%q, %v, %v)", id, ok, err)
	}
}

func TestCachedDirectoryEviction(t *testing.T) {
	ctx := context.Background()
	next := newFakeDirectory(nil)

	d, err := NewCachedDirectory(next, 2)
	if err != nil {
		t.Fatal(err)
	}
	d.Resolve(ctx, "a")
	d.Resolve(ctx, "b")
	d.Resolve(ctx, "c")
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}

	d.Resolve(ctx, "a")
	if next.Calls() != 4 {
		t.Errorf("evicted entry should be looked up again: calls = %d", next.Calls())
	}
}
