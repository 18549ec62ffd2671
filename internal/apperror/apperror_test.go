package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("developer", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("skillsEndorsed", "at least one skill is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "BadRequest wraps ErrBadRequest",
			err:       BadRequest("cannot vouch for yourself"),
			target:    ErrBadRequest,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("vouch", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("tier hierarchy violation"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrBadRequest",
			err:       NotFound("developer", "abc123"),
			target:    ErrBadRequest,
			wantMatch: false,
		},
		{
			name:      "BadRequest does NOT match ErrValidation",
			err:       BadRequest("duplicate vouch"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "wrapped BadRequest still matches",
			err:       fmt.Errorf("creating vouch: %w", BadRequest("throttled")),
			target:    ErrBadRequest,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("vouch", "abc123"),
			wantMessage: "vouch not found with id abc123",
		},
		{
			name:        "BadRequest uses custom message",
			err:         BadRequest("developer is not eligible"),
			wantMessage: "developer is not eligible",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("vouch", "abc123"),
			wantMessage: "vouch conflict with id abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("developer", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestBadRequestReasons(t *testing.T) {
	err := BadRequest("not eligible", "reason one", "reason two")

	if len(err.Reasons) != 2 {
		t.Fatalf("Reasons length = %d, want 2", len(err.Reasons))
	}
	if err.Reasons[0] != "reason one" {
		t.Errorf("Reasons[0] = %q, want %q", err.Reasons[0], "reason one")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("vouchedUserId", "vouchedUserId is required")

	if err.Field != "vouchedUserId" {
		t.Errorf("Field = %q, want %q", err.Field, "vouchedUserId")
	}
}
