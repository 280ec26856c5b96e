package projectdb

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("outer: %w", Errorf(KindNotFound, "scene %q not found", "s1"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("errors.Is(%v, ErrNotFound) = false", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Errorf("errors.Is(%v, ErrConflict) = true", err)
	}
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf() = %q, want %q", got, KindNotFound)
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{Wrap(KindBackend, "saving", io.EOF), "saving: EOF"},
		{&Error{Kind: KindSchema, Msg: "bad"}, "bad"},
		{Errorf(KindParse, "line %d", 3), "line 3"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestAsBackend(t *testing.T) {
	if asBackend("x", nil) != nil {
		t.Error("asBackend(nil) != nil")
	}
	if got := KindOf(asBackend("x", io.EOF)); got != KindBackend {
		t.Errorf("KindOf(asBackend(EOF)) = %q, want backend", got)
	}
	conflict := Errorf(KindConflict, "late")
	if got := asBackend("x", conflict); got != error(conflict) {
		t.Errorf("asBackend() rewrapped a tagged error: %v", got)
	}
	if !errors.Is(asBackend("x", io.EOF), io.EOF) {
		t.Error("asBackend() lost the cause")
	}
}
