package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Validator checks struct tags. *validation.Validator satisfies it.
type Validator interface {
	Validate(i interface{}) error
}

// ValidationError wraps a payload validation failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type Service struct {
	repo      Repository
	validator Validator
	logger    zerolog.Logger
}

func NewService(repo Repository, v Validator, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: v,
		logger:    logger.With().Str("component", "patient").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Patient, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	p := &Patient{
		ID:         strings.TrimSpace(req.ID),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Age:        req.Age,
		Conditions: append([]string{}, req.Conditions...),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("patient_id", p.ID).Msg("patient created")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update applies the non-nil fields of req to the stored record.
func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Patient, error) {
	req.Normalize()
	if err := s.validate(req); err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, id, func(p *Patient) error {
		req.Apply(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("patient_id", id).Msg("patient updated")
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Debug().Str("patient_id", id).Msg("patient deleted")
	return nil
}

func (s *Service) validate(v interface{}) error {
	if s.validator == nil {
		return nil
	}
	if err := s.validator.Validate(v); err != nil {
		return &ValidationError{Err: fmt.Errorf("invalid patient: %w", err)}
	}
	return nil
}
