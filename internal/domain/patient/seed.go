package patient

import (
	"context"
	"errors"
	"fmt"
)

func intPtr(v int) *int { return &v }

// DemoPatients returns the demo records loaded into an empty store.
func DemoPatients() []*Patient {
	return []*Patient{
		{
			ID:         "p-1",
			FirstName:  "Ada",
			LastName:   "Lovelace",
			Email:      "ada@example.com",
			Age:        intPtr(36),
			Conditions: []string{"diabetes"},
		},
		{
			ID:         "p-2",
			FirstName:  "Alan",
			LastName:   "Turing",
			Email:      "alan@example.com",
			Age:        intPtr(41),
			Conditions: []string{"hypertension"},
		},
	}
}

// SeedDemoData inserts the demo records when repo is empty and returns how
// many were inserted.
func SeedDemoData(ctx context.Context, repo Repository) (int, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	inserted := 0
	for _, p := range DemoPatients() {
		if err := repo.Create(ctx, p); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return inserted, fmt.Errorf("seed patient %s: %w", p.ID, err)
		}
		inserted++
	}
	return inserted, nil
}
