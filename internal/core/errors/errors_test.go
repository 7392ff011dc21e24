package errors

import (
	"errors"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNodeNotFound, "node not in store")
		if err.Error() != "[NODE_NOT_FOUND] node not in store" {
			t.Errorf("unexpected message: %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("disk full")
		err := Wrap(original, CodeInternal, "persist batch")
		expected := "[INTERNAL_ERROR] persist batch: disk full"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeQuerySyntax, "unexpected token")
		if !IsCode(err, CodeQuerySyntax) {
			t.Error("expected IsCode to match CodeQuerySyntax")
		}
		if IsCode(err, CodeNodeNotFound) {
			t.Error("IsCode matched the wrong code")
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		inner := New(CodeQueryTimeout, "deadline exceeded")
		outer := Wrap(inner, CodeInternal, "poll tick")
		// Outer code wins; the inner code is still reachable via Unwrap.
		if !IsCode(outer, CodeInternal) {
			t.Error("expected outer code")
		}
	})

	t.Run("WithContext", func(t *testing.T) {
		err := AddContext(New(CodeNodeNotFound, "missing"), CtxAddress, "p/f.go#Function:x")
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected DomainError")
		}
		if de.Context[CtxAddress] != "p/f.go#Function:x" {
			t.Errorf("context not attached: %v", de.Context)
		}
	})

	t.Run("CodeOfPlainError", func(t *testing.T) {
		if CodeOf(errors.New("plain")) != CodeInternal {
			t.Error("plain errors should map to CodeInternal")
		}
	})
}
