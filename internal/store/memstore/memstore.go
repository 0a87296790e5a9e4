// Package memstore is an in-memory core.RecordStore and principal directory.
// It backs the CLI's dry runs and every test that needs a store.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// Op names a store write passed to a WriteHook.
type Op string

const (
	OpInsert         Op = "insert"
	OpUpdate         Op = "update"
	OpDeleteChildren Op = "delete_children"
	OpInsertChildren Op = "insert_children"
)

// WriteHook runs before every write. A non-nil error aborts the write and is
// returned to the caller.
type WriteHook func(op Op, entity string, fields map[string]string) error

type table struct {
	order []string
	rows  map[string]map[string]string
}

// Store holds records per entity in insertion order.
type Store struct {
	mu       sync.RWMutex
	tables   map[string]*table
	children map[string]map[string][]map[string]string // child entity -> parent id -> rows
	users    []User
	hook     WriteHook
	newID    func() string
}

var _ core.RecordStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		tables:   make(map[string]*table),
		children: make(map[string]map[string][]map[string]string),
		newID:    func() string { return uuid.NewString() },
	}
}

// SetWriteHook installs hook, replacing any previous one. nil removes it.
func (s *Store) SetWriteHook(hook WriteHook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

// DenyWrites refuses every write to the given entities with core.ErrPermissionDenied.
func (s *Store) DenyWrites(entities ...string) {
	denied := make(map[string]bool, len(entities))
	for _, e := range entities {
		denied[e] = true
	}
	s.SetWriteHook(func(_ Op, entity string, _ map[string]string) error {
		if denied[entity] {
			return fmt.Errorf("write %s: %w", entity, core.ErrPermissionDenied)
		}
		return nil
	})
}

func (s *Store) checkWrite(op Op, entity string, fields map[string]string) error {
	if s.hook == nil {
		return nil
	}
	return s.hook(op, entity, fields)
}

func (s *Store) table(entity string) *table {
	t, ok := s.tables[entity]
	if !ok {
		t = &table{rows: make(map[string]map[string]string)}
		s.tables[entity] = t
	}
	return t
}

// FindByID implements core.RecordStore.
func (s *Store) FindByID(_ context.Context, entity, id string) (*core.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[entity]
	if !ok {
		return nil, core.ErrNotFound
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &core.StoredRecord{ID: id, Fields: clone(row)}, nil
}

// FindByNaturalKey implements core.RecordStore. Values compare exactly.
func (s *Store) FindByNaturalKey(_ context.Context, entity string, key map[string]string) (*core.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[entity]
	if !ok {
		return nil, core.ErrNotFound
	}
next:
	for _, id := range t.order {
		row := t.rows[id]
		for k, v := range key {
			if row[k] != v {
				continue next
			}
		}
		return &core.StoredRecord{ID: id, Fields: clone(row)}, nil
	}
	return nil, core.ErrNotFound
}

// Insert implements core.RecordStore.
func (s *Store) Insert(_ context.Context, entity string, fields map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWrite(OpInsert, entity, fields); err != nil {
		return "", err
	}
	id := s.newID()
	t := s.table(entity)
	t.order = append(t.order, id)
	t.rows[id] = clone(fields)
	return id, nil
}

// Update overwrites the supplied fields and leaves the rest untouched.
func (s *Store) Update(_ context.Context, entity, id string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWrite(OpUpdate, entity, fields); err != nil {
		return err
	}
	t, ok := s.tables[entity]
	if !ok {
		return fmt.Errorf("update %s %s: %w", entity, id, core.ErrNotFound)
	}
	row, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("update %s %s: %w", entity, id, core.ErrNotFound)
	}
	for k, v := range fields {
		row[k] = v
	}
	return nil
}

// DeleteChildren implements core.RecordStore.
func (s *Store) DeleteChildren(_ context.Context, child, parentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWrite(OpDeleteChildren, child, nil); err != nil {
		return err
	}
	delete(s.children[child], parentID)
	return nil
}

// InsertChildren appends rows to the parent's children.
func (s *Store) InsertChildren(_ context.Context, child, parentID string, rows []map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if err := s.checkWrite(OpInsertChildren, child, r); err != nil {
			return err
		}
	}
	byParent, ok := s.children[child]
	if !ok {
		byParent = make(map[string][]map[string]string)
		s.children[child] = byParent
	}
	for _, r := range rows {
		byParent[parentID] = append(byParent[parentID], clone(r))
	}
	return nil
}

// List returns every record of entity in insertion order.
func (s *Store) List(_ context.Context, entity string) ([]core.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[entity]
	if !ok {
		return []core.StoredRecord{}, nil
	}
	out := make([]core.StoredRecord, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, core.StoredRecord{ID: id, Fields: clone(t.rows[id])})
	}
	return out, nil
}

// ListChildren implements core.RecordStore. Parents without children are absent.
func (s *Store) ListChildren(_ context.Context, child string, parentIDs []string) (map[string][]map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]map[string]string)
	byParent := s.children[child]
	for _, id := range parentIDs {
		rows := byParent[id]
		if len(rows) == 0 {
			continue
		}
		copied := make([]map[string]string, len(rows))
		for i, r := range rows {
			copied[i] = clone(r)
		}
		out[id] = copied
	}
	return out, nil
}

// Count returns the number of records stored for entity.
func (s *Store) Count(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[entity]; ok {
		return len(t.order)
	}
	return 0
}

// User is a principal that id-reference fields can resolve to.
type User struct {
	ID          string
	Email       string
	DisplayName string
	FullName    string
}

// AddUser registers a principal. An empty ID gets a new uuid.
func (s *Store) AddUser(u User) User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.users = append(s.users, u)
	s.mu.Unlock()
	return u
}

// Resolve implements core.PrincipalDirectory. Display name wins over full
// name, which wins over email; all compare case-insensitively. Within a tier
// the earliest added user matches.
func (s *Store) Resolve(_ context.Context, text string) (string, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	tiers := []func(User) string{
		func(u User) string { return u.DisplayName },
		func(u User) string { return u.FullName },
		func(u User) string { return u.Email },
	}
	for _, field := range tiers {
		for _, u := range s.users {
			if strings.EqualFold(field(u), text) {
				return u.ID, true, nil
			}
		}
	}
	return "", false, nil
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
