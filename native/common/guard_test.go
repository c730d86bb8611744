package common

import (
	"errors"
	"testing"
)

func TestReentrancyGuardRejectsNestedEntry(t *testing.T) {
	var guard ReentrancyGuard

	release, err := guard.Enter()
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if !guard.Busy() {
		t.Fatalf("expected guard to be busy")
	}
	if _, err := guard.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", err)
	}

	release()
	if guard.Busy() {
		t.Fatalf("expected guard to be released")
	}
	release, err = guard.Enter()
	if err != nil {
		t.Fatalf("re-enter after release: %v", err)
	}
	release()
}
