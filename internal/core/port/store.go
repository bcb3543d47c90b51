package port

import "github.com/metrolabs/equiptrack/internal/core/domain"

// SessionStore persists the credentials of one client context. Reads consult
// the context-local tier first and fall back to the legacy shared tier
// without ever writing back to it; writes target the local tier only.
type SessionStore interface {
	// Read returns the current session, restoring from the legacy fallback
	// when the local tier is empty. The second result is false when neither
	// tier holds a valid (token, profile) pair.
	Read() (*domain.Session, bool)
	// Write replaces the local tier's session.
	Write(session domain.Session)
	// Clear removes the local session and, for backward-compatible logout
	// behavior, the legacy shared credential keys as well.
	Clear()
	// AccessToken re-reads the current bearer token on every call. The
	// request engine relies on this freshness; implementations must not
	// cache.
	AccessToken() string
}
