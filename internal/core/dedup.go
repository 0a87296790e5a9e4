package core

import (
	"context"
	"errors"
)

// MatchKind is the outcome of a duplicate lookup.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchID
	MatchNaturalKey
)

func (k MatchKind) String() string {
	switch k {
	case MatchID:
		return "id"
	case MatchNaturalKey:
		return "natural_key"
	default:
		return "none"
	}
}

// Match identifies the existing record a row corresponds to, if any.
type Match struct {
	Kind     MatchKind
	RecordID string
}

// DedupMatcher decides whether a record already exists in the store.
// A non-empty id that exists wins; otherwise the natural key is compared
// with exact, case-sensitive equality.
type DedupMatcher struct {
	schema *Schema
	store  RecordStore
}

// NewDedupMatcher creates a matcher for one schema.
func NewDedupMatcher(schema *Schema, store RecordStore) *DedupMatcher {
	return &DedupMatcher{schema: schema, store: store}
}

// Find looks the record up by id, then by natural key.
func (m *DedupMatcher) Find(ctx context.Context, rec *Record) (Match, error) {
	if rec.ID != "" {
		found, err := m.store.FindByID(ctx, m.schema.Entity, rec.ID)
		switch {
		case err == nil:
			return Match{Kind: MatchID, RecordID: found.ID}, nil
		case !errors.Is(err, ErrNotFound):
			return Match{}, err
		}
	}

	found, err := m.store.FindByNaturalKey(ctx, m.schema.Entity, m.schema.NaturalKeyOf(rec))
	switch {
	case err == nil:
		return Match{Kind: MatchNaturalKey, RecordID: found.ID}, nil
	case errors.Is(err, ErrNotFound):
		return Match{Kind: MatchNone}, nil
	default:
		return Match{}, err
	}
}
