// Package session implements per-context credential storage: a tab-local
// primary tier plus a read-only fallback over the legacy shared credential
// file.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/metrolabs/equiptrack/internal/core/domain"
)

// Store is the two-tier session store owned by one coordinator. The primary
// tier lives in memory and is mutated only by the owning context; the legacy
// tier is read as a fallback and written only by Clear.
type Store struct {
	tabID  string
	legacy *LegacyStore
	logger *zap.Logger

	mu      sync.RWMutex
	current *domain.Session
}

// NewStore constructs a Store for the given tab. legacy may be nil when no
// shared credential file is configured.
func NewStore(tabID string, legacy *LegacyStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		tabID:  tabID,
		legacy: legacy,
		logger: logger,
	}
}

// TabID returns the owning tab identifier.
func (s *Store) TabID() string { return s.tabID }

// Read returns the current session: primary tier first, then the legacy
// fallback. The fallback is never written back; a legacy session remains
// legacy until an explicit Write replaces it.
func (s *Store) Read() (*domain.Session, bool) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current != nil {
		copied := *current
		return &copied, true
	}
	if s.legacy == nil {
		return nil, false
	}
	return s.legacy.Read()
}

// Write replaces the primary tier's session. The legacy tier is never a
// write target.
func (s *Store) Write(session domain.Session) {
	if session.TabID == "" {
		session.TabID = s.tabID
	}
	s.mu.Lock()
	s.current = &session
	s.mu.Unlock()
}

// Clear removes the primary session and, for backward-compatible logout
// behavior, the legacy shared credential keys.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if s.legacy != nil {
		if err := s.legacy.Clear(); err != nil {
			s.logger.Warn("clear legacy credentials", zap.Error(err))
		}
	}
}

// AccessToken re-reads the store on every invocation so the request engine
// always sees the latest token.
func (s *Store) AccessToken() string {
	session, ok := s.Read()
	if !ok {
		return ""
	}
	return session.AccessToken
}

// TokenExpired reports whether the token is a JWT whose exp claim has
// already passed. Opaque tokens are never treated as locally expired; only
// the server can judge those.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return false
	}
	return expiry.Before(now)
}
