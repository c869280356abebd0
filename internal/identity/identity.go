package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidToken is returned when a connection token cannot be resolved.
var ErrInvalidToken = errors.New("invalid identity token")

// Identity is who a connection belongs to, resolved once at connect time.
type Identity struct {
	ParticipantID string
	DisplayName   string
}

// Resolver turns an opaque connection token into a participant identity.
// The engine only ever sees the resolved IDs; swap in a real provider (JWT,
// upstream auth service) behind this interface.
type Resolver interface {
	ResolveParticipant(ctx context.Context, token string) (Identity, error)
}

// InsecureResolver accepts "participantId:displayName" tokens verbatim.
// Useful for development and tests only.
type InsecureResolver struct{}

func NewInsecureResolver() *InsecureResolver {
	return &InsecureResolver{}
}

func (r *InsecureResolver) ResolveParticipant(_ context.Context, token string) (Identity, error) {
	id, name, ok := strings.Cut(token, ":")
	if !ok || id == "" || name == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ParticipantID: id, DisplayName: name}, nil
}
