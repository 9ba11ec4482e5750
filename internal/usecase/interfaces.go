package usecase

import "context"

// IdentityProvider is the boundary to the external auth service. It yields a
// stable uid plus display attributes on sign-in; nothing else is assumed.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	VerifyToken(ctx context.Context, token string) (string, error)
	GenerateToken(ctx context.Context, uid string) (string, error)
	SignInWithEmailPassword(email, password string) (string, error)
}
