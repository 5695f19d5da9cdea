package patient

import (
	"strings"
	"time"
)

// Patient maps to the patients table.
type Patient struct {
	ID         string    `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Email      string    `db:"email" json:"email"`
	Age        *int      `db:"age" json:"age,omitempty"`
	Conditions []string  `db:"conditions" json:"conditions"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy so callers never share slices or pointers with
// a store.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Age != nil {
		age := *p.Age
		cp.Age = &age
	}
	cp.Conditions = append([]string{}, p.Conditions...)
	return &cp
}

// CreateRequest is the payload for POST /patients. ID is optional; one is
// generated when it is empty.
type CreateRequest struct {
	ID         string   `json:"id,omitempty" validate:"omitempty,max=64"`
	FirstName  string   `json:"first_name" validate:"required"`
	LastName   string   `json:"last_name" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Age        *int     `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	Conditions []string `json:"conditions"`
}

// UpdateRequest is the payload for PUT /patients/:id. Only non-nil fields
// are applied.
type UpdateRequest struct {
	FirstName  *string   `json:"first_name,omitempty" validate:"omitnil,min=1"`
	LastName   *string   `json:"last_name,omitempty" validate:"omitnil,min=1"`
	Email      *string   `json:"email,omitempty" validate:"omitnil,email"`
	Age        *int      `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	Conditions *[]string `json:"conditions,omitempty"`
}

// Normalize trims surrounding whitespace from the set string fields, the
// same way Create does, so a blank name fails the min=1 rule.
func (r *UpdateRequest) Normalize() {
	for _, f := range []*string{r.FirstName, r.LastName, r.Email} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

// Apply merges the set fields of r into p.
func (r *UpdateRequest) Apply(p *Patient) {
	if r.FirstName != nil {
		p.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		p.LastName = *r.LastName
	}
	if r.Email != nil {
		p.Email = *r.Email
	}
	if r.Age != nil {
		age := *r.Age
		p.Age = &age
	}
	if r.Conditions != nil {
		p.Conditions = append([]string{}, (*r.Conditions)...)
	}
}
