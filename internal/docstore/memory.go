package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. Used when PostgreSQL is disabled and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Fields // collection -> id -> fields
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: map[string]map[string]Fields{},
		now:  time.Now,
	}
}

// WithClock overrides the server timestamp source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) NewID() string { return uuid.NewString() }

func (s *MemoryStore) Get(_ context.Context, ref Ref) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.docs[ref.Collection][ref.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Path())
	}
	return &Document{Ref: ref, Fields: cloneFields(f)}, nil
}

func (s *MemoryStore) QueryByField(_ context.Context, collection, field string, equals any) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Document{}
	for _, id := range sortedIDs(s.docs[collection]) {
		f := s.docs[collection][id]
		v, ok := f[field]
		if !ok || !valuesEqual(v, equals) {
			continue
		}
		out = append(out, Document{Ref: Doc(collection, id), Fields: cloneFields(f)})
	}
	return out, nil
}

func (s *MemoryStore) QueryOrderedLimit(_ context.Context, collection, orderBy string, desc bool, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Document{}
	for _, id := range sortedIDs(s.docs[collection]) {
		f := s.docs[collection][id]
		if v, ok := f[orderBy]; !ok || v == nil {
			continue
		}
		out = append(out, Document{Ref: Doc(collection, id), Fields: cloneFields(f)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(out[i].Fields[orderBy], out[j].Fields[orderBy])
		if desc {
			return c > 0
		}
		return c < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AtomicWrite stages every op against a private copy of the touched documents and
// swaps them in only when the whole batch applied cleanly.
func (s *MemoryStore) AtomicWrite(ctx context.Context, ops []WriteOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, op := range ops {
		if err := op.validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	commitTime := s.now().UTC()
	staged := map[Ref]Fields{}
	lookup := func(ref Ref) (Fields, bool) {
		if f, ok := staged[ref]; ok {
			return f, true
		}
		f, ok := s.docs[ref.Collection][ref.ID]
		if !ok {
			return nil, false
		}
		return cloneFields(f), true
	}

	for i, op := range ops {
		current, exists := lookup(op.Ref)
		switch op.Kind {
		case OpCreate:
			if exists {
				return fmt.Errorf("op %d: %w: %s", i, ErrAlreadyExists, op.Ref.Path())
			}
			staged[op.Ref] = resolveFields(Fields{}, op.Fields, commitTime)
		case OpSet:
			staged[op.Ref] = resolveFields(Fields{}, op.Fields, commitTime)
		case OpUpdate:
			if !exists {
				return fmt.Errorf("op %d: %w: %s", i, ErrNotFound, op.Ref.Path())
			}
			if err := checkPreconditions(current, op.Preconditions); err != nil {
				return fmt.Errorf("op %d on %s: %w", i, op.Ref.Path(), err)
			}
			staged[op.Ref] = resolveFields(current, op.Fields, commitTime)
		default:
			return fmt.Errorf("op %d: unsupported op kind %d", i, op.Kind)
		}
	}

	for ref, f := range staged {
		if s.docs[ref.Collection] == nil {
			s.docs[ref.Collection] = map[string]Fields{}
		}
		s.docs[ref.Collection][ref.ID] = f
	}
	return nil
}

func checkPreconditions(current Fields, pre []Precondition) error {
	for _, p := range pre {
		v, ok := current[p.Field]
		if p.Absent {
			if ok && v != nil {
				return fmt.Errorf("%w: %s is set", ErrPreconditionFailed, p.Field)
			}
			continue
		}
		if !ok || !valuesEqual(v, p.Equals) {
			return fmt.Errorf("%w: %s != %v", ErrPreconditionFailed, p.Field, p.Equals)
		}
	}
	return nil
}

// resolveFields merges patch into base, expanding ServerTimestamp and honouring DeleteField.
func resolveFields(base, patch Fields, commitTime time.Time) Fields {
	for k, v := range patch {
		switch v {
		case DeleteField:
			delete(base, k)
		case ServerTimestamp:
			base[k] = commitTime
		default:
			base[k] = cloneValue(v)
		}
	}
	return base
}

func cloneFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return cloneFields(t)
	case map[string]any:
		return map[string]any(cloneFields(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}
	return v
}

func sortedIDs(m map[string]Fields) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
