package patient

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("patient not found")
	ErrConflict = errors.New("patient already exists")
)

// Repository is the storage contract shared by the in-memory and PostgreSQL
// backends. Get, Update and Delete return ErrNotFound for unknown ids;
// Create returns ErrConflict when the id is taken.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	// Update loads the record, applies fn and stores the result atomically
	// with respect to other writers of the same id.
	Update(ctx context.Context, id string, fn func(*Patient) error) (*Patient, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
