package auth

import (
	"context"

	"github.com/google/uuid"
)

// PrincipalType distinguishes clinic staff from portal users.
type PrincipalType string

const (
	PrincipalDoctor     PrincipalType = "DOCTOR"
	PrincipalRespondent PrincipalType = "RESPONDENT"
)

// Role is the application role carried in the token.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Principal is the verified caller of a request.
type Principal struct {
	ID   uuid.UUID     `json:"id"`
	Type PrincipalType `json:"type"`
	Role Role          `json:"role"`
}

func (p Principal) IsDoctor() bool { return p.Type == PrincipalDoctor }

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
