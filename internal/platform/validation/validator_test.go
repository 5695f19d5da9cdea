package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Age   *int   `json:"age,omitempty" validate:"omitempty,gte=0"`
}

func TestValidate_OK(t *testing.T) {
	v := New()
	if err := v.Validate(&sample{Name: "Ada", Email: "ada@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	v := New()
	age := -1
	err := v.Validate(&sample{Email: "nope", Age: &age})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(verr.Fields), verr.Fields)
	}
	msg := verr.Error()
	for _, want := range []string{"name is required", "email must be a valid email address", "age must be greater than or equal to 0"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}
