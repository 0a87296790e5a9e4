package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]*Schema)
	registryMu sync.RWMutex
)

// Register adds an entity schema to the registry.
// Panics if the entity is already registered or the schema is inconsistent.
func Register(schema *Schema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[schema.Entity]; exists {
		panic(fmt.Sprintf("entity already registered: %s", schema.Entity))
	}
	if err := validateSchema(schema); err != nil {
		panic(fmt.Sprintf("invalid schema %s: %v", schema.Entity, err))
	}

	registry[schema.Entity] = schema
}

// validateSchema checks that key fields exist and the child column is a json-blob.
func validateSchema(s *Schema) error {
	if len(s.NaturalKey) == 0 {
		return fmt.Errorf("no natural key")
	}
	for _, k := range s.NaturalKey {
		if _, ok := s.Field(k); !ok {
			return fmt.Errorf("natural key field %q not defined", k)
		}
	}
	if s.IDField != "" {
		if _, ok := s.Field(s.IDField); !ok {
			return fmt.Errorf("id field %q not defined", s.IDField)
		}
	}
	if s.Child != nil {
		f, ok := s.Field(s.Child.Field)
		if !ok || f.Type != FieldJSON {
			return fmt.Errorf("child field %q must be a json-blob field", s.Child.Field)
		}
		if s.Child.ForeignKey == "" {
			return fmt.Errorf("child %q has no foreign key", s.Child.Entity)
		}
	}
	return nil
}

// Get returns an entity schema by name.
// Returns false if not found.
func Get(entity string) (*Schema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[entity]
	return s, ok
}

// Lookup is Get with an error suitable for returning to callers.
func Lookup(entity string) (*Schema, error) {
	s, ok := Get(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return s, nil
}

// ChildOf returns the child spec registered under the given child entity name.
func ChildOf(child string) (*ChildSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, s := range registry {
		if s.Child != nil && s.Child.Entity == child {
			return s.Child, true
		}
	}
	return nil, false
}

// All returns all registered schemas sorted by entity name.
func All() []*Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*Schema, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Entity < result[j].Entity
	})

	return result
}

// EntityCount returns the number of registered entities.
func EntityCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered entities.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*Schema)
}
