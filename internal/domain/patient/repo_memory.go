package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	nowFunc  func() time.Time
}

// NewMemoryRepo returns a process-local Repository. All access goes through
// one RWMutex and records are copied in and out.
func NewMemoryRepo() Repository {
	return &memoryRepo{
		patients: make(map[string]*Patient),
		nowFunc:  time.Now,
	}
}

func (r *memoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, exists := r.patients[p.ID]; exists {
		return ErrConflict
	}
	now := r.nowFunc().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	r.patients[p.ID] = p.Clone()
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	all := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		all = append(all, p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*Patient{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *memoryRepo) Update(_ context.Context, id string, fn func(*Patient) error) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = r.nowFunc().UTC()
	r.patients[id] = next
	return next.Clone(), nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[id]; !ok {
		return ErrNotFound
	}
	delete(r.patients, id)
	return nil
}

func (r *memoryRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patients), nil
}
