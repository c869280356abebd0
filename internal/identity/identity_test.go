package identity

import (
	"context"
	"errors"
	"testing"
)

func TestInsecureResolver(t *testing.T) {
	r := NewInsecureResolver()

	who, err := r.ResolveParticipant(context.Background(), "u1:Alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if who.ParticipantID != "u1" || who.DisplayName != "Alice" {
		t.Fatalf("unexpected identity %+v", who)
	}

	// Display names may themselves contain the separator.
	who, err = r.ResolveParticipant(context.Background(), "u2:Bea:The:Great")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if who.DisplayName != "Bea:The:Great" {
		t.Fatalf("unexpected display name %q", who.DisplayName)
	}

	for _, token := range []string{"", "nocolon", ":NoID", "noname:"} {
		if _, err := r.ResolveParticipant(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}
