package events

import (
	"errors"
	"strings"
	"testing"
)

func TestNewEventIDValidation(t *testing.T) {
	id, err := NewEventID("  evt-1  ")
	if err != nil {
		t.Fatalf("NewEventID: %v", err)
	}
	if id.String() != "evt-1" {
		t.Fatalf("expected trimmed identifier, got %q", id.String())
	}

	if _, err := NewEventID("   "); !errors.Is(err, ErrInvalidEventID) {
		t.Fatalf("expected ErrInvalidEventID for blank input, got %v", err)
	}
	if _, err := NewEventID(strings.Repeat("x", maxIdentifierLength+1)); !errors.Is(err, ErrInvalidEventID) {
		t.Fatalf("expected ErrInvalidEventID for oversized input, got %v", err)
	}
	if _, err := NewEventID(strings.Repeat("x", maxIdentifierLength)); err != nil {
		t.Fatalf("identifier at the length bound should be accepted, got %v", err)
	}
}

func TestNewUserIDValidation(t *testing.T) {
	id, err := NewUserID("user-7")
	if err != nil {
		t.Fatalf("NewUserID: %v", err)
	}
	if id.String() != "user-7" {
		t.Fatalf("unexpected identifier %q", id.String())
	}

	if _, err := NewUserID(""); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID for empty input, got %v", err)
	}
	if _, err := NewUserID(strings.Repeat("u", maxIdentifierLength+1)); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID for oversized input, got %v", err)
	}
}
