package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"coded", NotFound("gone"), KindNotFound},
		{"wrapped coded", fmt.Errorf("outer: %w", Conflict("dup")), KindConflict},
		{"plain", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs_MatchesByKind(t *testing.T) {
	err := Wrap(KindConfig, "Channel not configured.", errors.New("404"))
	if !errors.Is(err, Config("")) {
		t.Error("expected errors.Is to match on kind")
	}
	if errors.Is(err, NotFound("")) {
		t.Error("expected different kinds not to match")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(KindInternal, "msg", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(Validation("Name is required.")); got != "Name is required." {
		t.Errorf("got %q", got)
	}
	if got := UserMessage(errors.New("mongo: connection refused")); got == "mongo: connection refused" {
		t.Error("technical detail leaked into user message")
	}
}
