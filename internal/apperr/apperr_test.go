package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := Newf(NotFound, "appointment %s not found", "abc")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected NotFound match")
	}
	if errors.Is(err, ErrSlotConflict) {
		t.Fatal("unexpected SlotConflict match")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatal("expected match through fmt wrapping")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed", New(OutOfHours, "closed"), OutOfHours},
		{"wrapped typed", fmt.Errorf("x: %w", New(Forbidden, "no")), Forbidden},
		{"untyped", errors.New("boom"), StorageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, StorageError, "insert appointment")
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if Message(err) != "insert appointment" {
		t.Errorf("message: %q", Message(err))
	}
	if err.Error() != "StorageError: insert appointment: connection reset" {
		t.Errorf("error string: %q", err.Error())
	}
}
