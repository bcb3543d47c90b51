package domain

import "time"

// UserProfile is the authenticated user as reported by the login and
// session-validity endpoints.
type UserProfile struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission reports whether the profile carries the named permission.
// Administrators implicitly hold every permission.
func (p UserProfile) HasPermission(permission string) bool {
	if p.IsAdmin {
		return true
	}
	for _, candidate := range p.Permissions {
		if candidate == permission {
			return true
		}
	}
	return false
}

// Session is the credential state owned by a single client context ("tab").
// It is never shared between contexts; the legacy shared store is only ever
// read as a fallback.
type Session struct {
	TabID        string      `json:"tab_id"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserProfile `json:"user"`
}

// Valid reports whether the session holds the (token, profile) pair required
// to restore it.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.User.Username != ""
}

// LoginResult is the success payload of the login endpoint.
type LoginResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserProfile `json:"user"`
}

// ConflictTypeSessionExists marks the server-side conflict payload that the
// login flow is prepared to resolve interactively.
const ConflictTypeSessionExists = "session_exists"

// ActiveSession describes one server-side session row inside a 409 conflict
// payload. Timestamps arrive as epoch seconds.
type ActiveSession struct {
	IPAddress    string `json:"ip_address"`
	UserAgent    string `json:"user_agent"`
	CreatedAt    int64  `json:"created_at"`
	LastActivity int64  `json:"last_activity"`
}

// CreatedTime converts the creation timestamp to a time.Time.
func (a ActiveSession) CreatedTime() time.Time {
	return time.Unix(a.CreatedAt, 0)
}

// LastActivityTime converts the last-activity timestamp to a time.Time.
func (a ActiveSession) LastActivityTime() time.Time {
	return time.Unix(a.LastActivity, 0)
}

// SessionConflict is the normalized body of a 409 response from the login
// endpoint. The server may nest it under a "detail" field; the request engine
// flattens that before the conflict reaches callers.
type SessionConflict struct {
	ConflictType   string          `json:"conflict_type"`
	Message        string          `json:"message"`
	ActiveSessions []ActiveSession `json:"active_sessions"`
}
