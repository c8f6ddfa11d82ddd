package studyplan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a plan id does not exist.
var ErrNotFound = errors.New("study plan not found")

const defaultListLimit = 20

// ListOptions filters and pages plan listings. Results are newest first.
type ListOptions struct {
	Subject string
	Limit   int
	Offset  int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return defaultListLimit
	}
	return o.Limit
}

// Store persists generated study plans.
type Store interface {
	Save(ctx context.Context, plan *StudyPlan) (string, error)
	Get(ctx context.Context, id string) (*StudyPlan, error)
	List(ctx context.Context, opts ListOptions) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh plan id.
func NewID() string {
	return uuid.NewString()
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	plans map[string]*StudyPlan
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory plan store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{plans: make(map[string]*StudyPlan)}
}

// Save stores a copy of plan, assigning an id and creation time when unset.
func (s *MemoryStore) Save(_ context.Context, plan *StudyPlan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("plan is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *plan
	if stored.ID == "" {
		stored.ID = NewID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.plans[stored.ID] = &stored
	return stored.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*StudyPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *plan
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Summary
	for _, p := range s.plans {
		if opts.Subject != "" && !strings.EqualFold(p.Metadata.Subject, opts.Subject) {
			continue
		}
		out = append(out, p.Summarize())
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if opts.Offset >= len(out) {
		return []Summary{}, nil
	}
	out = out[max(opts.Offset, 0):]
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.plans, id)
	return nil
}
