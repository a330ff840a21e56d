package roles

import (
	"errors"
	"strings"
	"sync"
)

var ErrNoSuperOperators = errors.New("at least one super operator is required")

// Authorizer is the view of the role store that command handlers see.
// The underlying containers are never exposed.
type Authorizer interface {
	IsSuperOperator(id string) bool
	IsOperator(id string) bool
	AddOperator(id string) bool
	RemoveOperator(id string) bool
	HasOperator(id string) bool
	ListOperators() []string
	SuperOperators() []string
}

// Store holds the fixed super-operator set and the mutable operator list.
// A single mutex guards the operator list; the super set is read-only after NewStore.
type Store struct {
	supers    []string
	superSet  map[string]struct{}
	mu        sync.Mutex
	operators []string
}

var _ Authorizer = (*Store)(nil)

func NewStore(superOperators []string) (*Store, error) {
	s := &Store{superSet: make(map[string]struct{})}
	for _, id := range superOperators {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := s.superSet[id]; dup {
			continue
		}
		s.superSet[id] = struct{}{}
		s.supers = append(s.supers, id)
	}
	if len(s.supers) == 0 {
		return nil, ErrNoSuperOperators
	}
	return s, nil
}

func (s *Store) IsSuperOperator(id string) bool {
	_, ok := s.superSet[id]
	return ok
}

// IsOperator is the authorization predicate for every operator-tier command.
func (s *Store) IsOperator(id string) bool {
	if s.IsSuperOperator(id) {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// HasOperator reports membership in the operator list only.
func (s *Store) HasOperator(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// AddOperator inserts id unless it is already authorized. Reports whether the list changed.
func (s *Store) AddOperator(id string) bool {
	if id == "" || s.IsSuperOperator(id) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) >= 0 {
		return false
	}
	s.operators = append(s.operators, id)
	return true
}

// RemoveOperator deletes id from the operator list. Super operators are never
// stored there, so they can't be removed.
func (s *Store) RemoveOperator(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.operators = append(s.operators[:i], s.operators[i+1:]...)
	return true
}

// ListOperators returns a snapshot in insertion order.
func (s *Store) ListOperators() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.operators))
	copy(out, s.operators)
	return out
}

func (s *Store) SuperOperators() []string {
	out := make([]string, len(s.supers))
	copy(out, s.supers)
	return out
}

func (s *Store) indexLocked(id string) int {
	for i, op := range s.operators {
		if op == id {
			return i
		}
	}
	return -1
}
