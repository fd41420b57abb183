package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "validation",
			err:  NewValidationError("order must contain at least one detail"),
			want: ErrorKindValidation,
		},
		{
			name: "not found with entity id",
			err:  NewNotFoundError("order not found", "order-1", ErrOrderNotFound),
			want: ErrorKindNotFound,
		},
		{
			name: "conflict",
			err:  NewConflictError("insufficient stock", "product-1"),
			want: ErrorKindConflict,
		},
		{
			name: "dependency",
			err:  NewDependencyError("inventory update failed", "product-1", errors.New("503")),
			want: ErrorKindDependency,
		},
		{
			name: "persistence",
			err:  NewPersistenceError("insert order", errors.New("connection reset")),
			want: ErrorKindPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf = %q, want %q", got, tt.want)
			}
			// Классификация должна переживать оборачивание.
			wrapped := fmt.Errorf("handler: %w", tt.err)
			if got := KindOf(wrapped); got != tt.want {
				t.Fatalf("KindOf(wrapped) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty kind for plain error, got %q", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}

func TestErrorMessageIncludesEntityID(t *testing.T) {
	err := NewNotFoundError("shopping cart entry not found", "cart-42", ErrCartNotFound)
	if err.Error() != "shopping cart entry not found: cart-42" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	// Первопричина доступна через errors.Is.
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatal("expected cause to unwrap to ErrCartNotFound")
	}
}

func TestPredicateHelpers(t *testing.T) {
	if !IsValidation(NewValidationError("x")) || IsValidation(ErrOrderNotFound) {
		t.Error("IsValidation misclassified")
	}
	if !IsNotFound(NewNotFoundError("x", "", nil)) {
		t.Error("IsNotFound misclassified")
	}
	if !IsConflict(NewConflictError("x", "")) {
		t.Error("IsConflict misclassified")
	}
	if !IsDependency(NewDependencyError("x", "", nil)) {
		t.Error("IsDependency misclassified")
	}
	if !IsPersistence(NewPersistenceError("x", nil)) {
		t.Error("IsPersistence misclassified")
	}
}
