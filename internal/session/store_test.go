package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
	"go.uber.org/zap/zaptest"

	"github.com/metrolabs/equiptrack/internal/core/domain"
)

const credentialPath = "/var/lib/equiptrack/credentials.json"

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "bob", "exp": expiry.Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func writeLegacyFile(t *testing.T, fs afero.Fs, values map[string]string) {
	t.Helper()
	raw, err := json.Marshal(values)
	if err != nil {
		t.Fatalf("encode credential file: %v", err)
	}
	if err := afero.WriteFile(fs, credentialPath, raw, 0o600); err != nil {
		t.Fatalf("write credential file: %v", err)
	}
}

func legacyProfile(t *testing.T, username string) string {
	t.Helper()
	raw, err := json.Marshal(domain.UserProfile{ID: 14, Username: username})
	if err != nil {
		t.Fatalf("encode profile: %v", err)
	}
	return string(raw)
}

func TestReadPrefersPrimaryTier(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLegacyFile(t, fs, map[string]string{
		"access_token": "legacy-token",
		"user_info":    legacyProfile(t, "legacy-user"),
	})

	store := NewStore("tab-1", NewLegacyStore(fs, credentialPath, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	store.Write(domain.Session{
		AccessToken: "primary-token",
		User:        domain.UserProfile{ID: 3, Username: "bob"},
	})

	session, ok := store.Read()
	if !ok {
		t.Fatal("expected a session")
	}
	if session.AccessToken != "primary-token" {
		t.Fatalf("expected primary tier to win, got %q", session.AccessToken)
	}
	if session.TabID != "tab-1" {
		t.Fatalf("expected tab id to be stamped, got %q", session.TabID)
	}
}

func TestReadFallsBackToLegacyWithoutWriteBack(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLegacyFile(t, fs, map[string]string{
		"access_token":  "legacy-token",
		"refresh_token": "legacy-refresh",
		"user_info":     legacyProfile(t, "bob"),
	})

	store := NewStore("tab-1", NewLegacyStore(fs, credentialPath, zaptest.NewLogger(t)), zaptest.NewLogger(t))

	first, ok := store.Read()
	if !ok {
		t.Fatal("expected legacy fallback to produce a session")
	}
	if first.AccessToken != "legacy-token" || first.User.Username != "bob" {
		t.Fatalf("unexpected legacy session: %+v", first)
	}

	// Repeated reads stay on the fallback path; nothing is promoted into
	// the primary tier.
	second, ok := store.Read()
	if !ok {
		t.Fatal("expected second read to succeed")
	}
	if second.AccessToken != first.AccessToken || second.User.Username != first.User.Username {
		t.Fatalf("expected identical results across reads, got %+v then %+v", first, second)
	}

	raw, err := afero.ReadFile(fs, credentialPath)
	if err != nil {
		t.Fatalf("read credential file: %v", err)
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		t.Fatalf("decode credential file: %v", err)
	}
	if values["access_token"] != "legacy-token" {
		t.Fatal("fallback reads must leave the shared file untouched")
	}
}

func TestClearRemovesBothTiersButPreservesUnrelatedKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLegacyFile(t, fs, map[string]string{
		"access_token":  "legacy-token",
		"refresh_token": "legacy-refresh",
		"user_info":     legacyProfile(t, "bob"),
		"theme":         "dark",
	})

	store := NewStore("tab-1", NewLegacyStore(fs, credentialPath, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	store.Write(domain.Session{
		AccessToken: "primary-token",
		User:        domain.UserProfile{Username: "bob"},
	})

	store.Clear()

	if _, ok := store.Read(); ok {
		t.Fatal("expected no session after Clear")
	}

	raw, err := afero.ReadFile(fs, credentialPath)
	if err != nil {
		t.Fatalf("read credential file: %v", err)
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		t.Fatalf("decode credential file: %v", err)
	}
	if _, exists := values["access_token"]; exists {
		t.Fatal("expected credential keys to be removed")
	}
	if values["theme"] != "dark" {
		t.Fatal("unrelated keys must survive Clear")
	}
}

func TestLegacyIgnoresExpiredJWT(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	writeLegacyFile(t, fs, map[string]string{
		"access_token": signedToken(t, now.Add(-time.Hour)),
		"user_info":    legacyProfile(t, "bob"),
	})

	legacy := NewLegacyStore(fs, credentialPath, zaptest.NewLogger(t))
	legacy.WithClock(func() time.Time { return now })

	if _, ok := legacy.Read(); ok {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestLegacyAcceptsLiveJWT(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	writeLegacyFile(t, fs, map[string]string{
		"access_token": signedToken(t, now.Add(time.Hour)),
		"user_info":    legacyProfile(t, "bob"),
	})

	legacy := NewLegacyStore(fs, credentialPath, zaptest.NewLogger(t))
	legacy.WithClock(func() time.Time { return now })

	session, ok := legacy.Read()
	if !ok {
		t.Fatal("expected live token to be restored")
	}
	if session.User.Username != "bob" {
		t.Fatalf("unexpected profile: %+v", session.User)
	}
}

func TestLegacyRejectsCorruptProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLegacyFile(t, fs, map[string]string{
		"access_token": "opaque-token",
		"user_info":    "{not json",
	})

	legacy := NewLegacyStore(fs, credentialPath, zaptest.NewLogger(t))

	if _, ok := legacy.Read(); ok {
		t.Fatal("expected corrupt profile to be rejected")
	}
}

func TestLegacyMissingFile(t *testing.T) {
	legacy := NewLegacyStore(afero.NewMemMapFs(), credentialPath, zaptest.NewLogger(t))

	if _, ok := legacy.Read(); ok {
		t.Fatal("expected no session from a missing file")
	}
	if err := legacy.Clear(); err != nil {
		t.Fatalf("Clear on a missing file must be a no-op, got %v", err)
	}
}

func TestAccessTokenReReadsStore(t *testing.T) {
	store := NewStore("tab-1", nil, zaptest.NewLogger(t))

	if got := store.AccessToken(); got != "" {
		t.Fatalf("expected empty token before login, got %q", got)
	}

	store.Write(domain.Session{AccessToken: "first", User: domain.UserProfile{Username: "bob"}})
	if got := store.AccessToken(); got != "first" {
		t.Fatalf("expected %q, got %q", "first", got)
	}

	store.Write(domain.Session{AccessToken: "rotated", User: domain.UserProfile{Username: "bob"}})
	if got := store.AccessToken(); got != "rotated" {
		t.Fatalf("expected the rotated token, got %q", got)
	}
}

func TestTokenExpiredTreatsOpaqueTokensAsLive(t *testing.T) {
	now := time.Now()
	if TokenExpired("not-a-jwt", now) {
		t.Fatal("opaque tokens must never be locally expired")
	}
}
