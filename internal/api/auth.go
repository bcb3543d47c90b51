package api

import (
	"context"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// AuthAPI covers the authentication endpoints that are not part of the
// coordinator's login flow.
type AuthAPI struct {
	client *httpclient.Client
}

// Me returns the profile behind the current bearer token.
func (a *AuthAPI) Me(ctx context.Context) (domain.UserProfile, error) {
	var profile domain.UserProfile
	err := a.client.Get(ctx, "/api/auth/me", &profile)
	return profile, err
}

// Validate implements port.SessionValidator: a single-attempt call to the
// session-validity endpoint that bypasses global unauthorized handling, so
// the recheck triggered by a 401 can never recurse into the handler it
// serves.
func (a *AuthAPI) Validate(ctx context.Context) (domain.UserProfile, error) {
	var profile domain.UserProfile
	err := a.client.Get(ctx, "/api/auth/me", &profile,
		httpclient.WithMaxAttempts(1),
		httpclient.WithoutUnauthorizedHandler(),
	)
	return profile, err
}
