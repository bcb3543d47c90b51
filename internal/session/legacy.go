package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/infra/logger"
)

// Credential keys mirror the shared store left behind by older clients.
const (
	legacyKeyAccessToken  = "access_token"
	legacyKeyRefreshToken = "refresh_token"
	legacyKeyUserInfo     = "user_info"
)

// LegacyStore reads the shared key-value credential file used by previous
// client generations. Multiple legacy writers may exist elsewhere; this code
// treats the file as read-only apart from clearing the credential keys on
// logout.
type LegacyStore struct {
	mu     sync.Mutex
	fs     afero.Fs
	path   string
	logger *zap.Logger
	now    func() time.Time
}

// NewLegacyStore constructs a LegacyStore over the supplied filesystem.
func NewLegacyStore(fs afero.Fs, path string, log *zap.Logger) *LegacyStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &LegacyStore{
		fs:     fs,
		path:   path,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (l *LegacyStore) WithClock(clock func() time.Time) {
	if clock != nil {
		l.now = clock
	}
}

// Read restores a session from the shared file. It returns false when the
// file is missing, unreadable, or does not hold a valid (token, profile)
// pair. A JWT access token that already expired is not restored.
func (l *LegacyStore) Read() (*domain.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	values, err := l.load()
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("read legacy credentials", zap.Error(err))
		}
		return nil, false
	}

	token := values[legacyKeyAccessToken]
	userInfo := values[legacyKeyUserInfo]
	if token == "" || userInfo == "" {
		return nil, false
	}

	var profile domain.UserProfile
	if err := json.Unmarshal([]byte(userInfo), &profile); err != nil {
		l.logger.Warn("legacy user profile is corrupt", zap.Error(err))
		return nil, false
	}

	if TokenExpired(token, l.now()) {
		l.logger.Debug("legacy access token expired, ignoring",
			zap.String("token", logger.MaskToken(token)),
		)
		return nil, false
	}

	session := &domain.Session{
		AccessToken:  token,
		RefreshToken: values[legacyKeyRefreshToken],
		User:         profile,
	}
	if !session.Valid() {
		return nil, false
	}
	return session, true
}

// Clear removes the credential keys while preserving any unrelated keys
// other legacy components may keep in the same file.
func (l *LegacyStore) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	values, err := l.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	delete(values, legacyKeyAccessToken)
	delete(values, legacyKeyRefreshToken)
	delete(values, legacyKeyUserInfo)

	return l.save(values)
}

func (l *LegacyStore) load() (map[string]string, error) {
	raw, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode legacy credential file: %w", err)
	}
	return values, nil
}

func (l *LegacyStore) save(values map[string]string) error {
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode legacy credential file: %w", err)
	}
	if err := afero.WriteFile(l.fs, l.path, raw, 0o600); err != nil {
		return fmt.Errorf("write legacy credential file: %w", err)
	}
	return nil
}
