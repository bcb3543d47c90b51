// Package usecase hosts the session coordinator: the single per-context
// service that unifies login conflict resolution, credential storage, and
// unauthorized-access handling behind one injectable surface.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/core/port"
	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// Broadcaster is the peer-protocol surface the coordinator drives.
// *broadcast.Peer satisfies it.
type Broadcaster interface {
	CheckLoginConflict(ctx context.Context, username string) (domain.ConflictCheck, error)
	ForceLogoutOthers(ctx context.Context, username string) error
	Announce(ctx context.Context, action, username string) error
	OnForceLogout(fn func(domain.ForceLogout))
	OnSessionUpdate(fn func(domain.SessionUpdate))
}

// Coordinator owns one client context's session lifecycle. Instantiated once
// per context; UI code depends on this type rather than any global state.
type Coordinator struct {
	tabID     string
	store     port.SessionStore
	client    *httpclient.Client
	peer      Broadcaster
	prompt    port.ConfirmationPrompt
	notifier  port.Notifier
	validator port.SessionValidator
	logger    *zap.Logger

	loginPath     string
	redirect      func()
	atLogin       func() bool
	redirectDelay time.Duration
	schedule      func(d time.Duration, fn func())

	// Serializes unauthorized teardowns so racing 401s collapse into one.
	unauthMu sync.Mutex
}

// NewCoordinator wires the coordinator into its collaborators: it registers
// itself as the request engine's unauthorized handler and as the peer's
// force-logout receiver.
func NewCoordinator(
	tabID string,
	store port.SessionStore,
	client *httpclient.Client,
	peer Broadcaster,
	prompt port.ConfirmationPrompt,
	notifier port.Notifier,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	coordinator := &Coordinator{
		tabID:         tabID,
		store:         store,
		client:        client,
		peer:          peer,
		prompt:        prompt,
		notifier:      notifier,
		logger:        logger,
		loginPath:     "/api/auth/login/json",
		redirect:      func() {},
		atLogin:       func() bool { return false },
		redirectDelay: 2 * time.Second,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}

	if client != nil {
		client.SetUnauthorizedHandler(coordinator)
	}
	if peer != nil {
		peer.OnForceLogout(coordinator.handleForceLogout)
		peer.OnSessionUpdate(coordinator.handleSessionUpdate)
	}
	return coordinator
}

// WithValidator injects the session-validity recheck used before a 401
// teardown.
func (c *Coordinator) WithValidator(validator port.SessionValidator) *Coordinator {
	c.validator = validator
	return c
}

// WithRedirect installs the navigation hooks: redirect jumps to the login
// entry point, atLogin reports whether the context is already there.
func (c *Coordinator) WithRedirect(redirect func(), atLogin func() bool) *Coordinator {
	if redirect != nil {
		c.redirect = redirect
	}
	if atLogin != nil {
		c.atLogin = atLogin
	}
	return c
}

// WithRedirectDelay overrides the pause between an eviction notification and
// the redirect.
func (c *Coordinator) WithRedirectDelay(delay time.Duration) *Coordinator {
	if delay >= 0 {
		c.redirectDelay = delay
	}
	return c
}

// WithScheduler overrides deferred execution for deterministic tests.
func (c *Coordinator) WithScheduler(schedule func(d time.Duration, fn func())) *Coordinator {
	if schedule != nil {
		c.schedule = schedule
	}
	return c
}

// TabID returns this context's identifier.
func (c *Coordinator) TabID() string { return c.tabID }

// CurrentUser returns the profile of the signed-in user, if any.
func (c *Coordinator) CurrentUser() (domain.UserProfile, bool) {
	session, ok := c.store.Read()
	if !ok {
		return domain.UserProfile{}, false
	}
	return session.User, true
}

// IsAdmin reports whether the signed-in user is an administrator.
func (c *Coordinator) IsAdmin() bool {
	user, ok := c.CurrentUser()
	return ok && user.IsAdmin
}

// HasPermission reports whether the signed-in user holds the permission.
func (c *Coordinator) HasPermission(permission string) bool {
	user, ok := c.CurrentUser()
	return ok && user.HasPermission(permission)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Force    bool   `json:"force,omitempty"`
}

// Login runs one full login submission: a plain attempt first, then — when
// the server reports an active-session conflict — an interactive force-login
// decision; on any other failure, client-side tab conflict detection. The
// server path is authoritative when reachable (it sees sessions from other
// devices); the client path still covers sibling tabs the server cannot
// distinguish.
func (c *Coordinator) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	result, err := c.attemptLogin(ctx, username, password, false)
	if err == nil {
		return c.completeLogin(ctx, result)
	}

	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) && conflictErr.Conflict.ConflictType == domain.ConflictTypeSessionExists {
		return c.resolveServerConflict(ctx, username, password, conflictErr.Conflict)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	// Network error, malformed conflict payload, or any non-409 failure:
	// fall back to client-side-only detection.
	c.logger.Debug("server conflict detection unavailable, using client-side check",
		zap.String("username", username),
		zap.Error(err),
	)
	return c.clientSideLogin(ctx, username, password)
}

func (c *Coordinator) resolveServerConflict(ctx context.Context, username, password string, conflict domain.SessionConflict) (*domain.Session, error) {
	c.logger.Info("server reported an active session",
		zap.String("username", username),
		zap.Int("active_sessions", len(conflict.ActiveSessions)),
	)

	confirmed, err := c.prompt.ConfirmServerConflict(ctx, username, conflict)
	if err != nil {
		return nil, fmt.Errorf("conflict prompt: %w", err)
	}
	if !confirmed {
		return nil, domain.ErrLoginCancelled
	}

	result, err := c.attemptLogin(ctx, username, password, true)
	if err != nil {
		return nil, err
	}
	return c.completeLogin(ctx, result)
}

func (c *Coordinator) clientSideLogin(ctx context.Context, username, password string) (*domain.Session, error) {
	check, err := c.peer.CheckLoginConflict(ctx, username)
	if err != nil {
		// Best effort: a broken channel must not block login.
		c.logger.Warn("client-side conflict check unavailable", zap.Error(err))
	} else if check.HasConflict {
		confirmed, promptErr := c.prompt.ConfirmTabConflict(ctx, username, len(check.Conflicts))
		if promptErr != nil {
			return nil, fmt.Errorf("conflict prompt: %w", promptErr)
		}
		if !confirmed {
			return nil, domain.ErrLoginCancelled
		}
		if logoutErr := c.peer.ForceLogoutOthers(ctx, username); logoutErr != nil {
			c.logger.Warn("force logout broadcast failed", zap.Error(logoutErr))
		}
	}

	result, err := c.attemptLogin(ctx, username, password, false)
	if err != nil {
		return nil, err
	}
	return c.completeLogin(ctx, result)
}

func (c *Coordinator) attemptLogin(ctx context.Context, username, password string, force bool) (*domain.LoginResult, error) {
	var result domain.LoginResult
	err := c.client.Post(ctx, c.loginPath, loginRequest{
		Username: username,
		Password: password,
		Force:    force,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Coordinator) completeLogin(ctx context.Context, result *domain.LoginResult) (*domain.Session, error) {
	session := domain.Session{
		TabID:        c.tabID,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         result.User,
	}
	c.store.Write(session)

	if err := c.peer.Announce(ctx, domain.SessionUpdateLogin, session.User.Username); err != nil {
		c.logger.Warn("login announcement failed", zap.Error(err))
	}

	c.logger.Info("login complete",
		zap.String("username", session.User.Username),
		zap.String("tab_id", c.tabID),
	)
	return &session, nil
}

// Logout clears both storage tiers, announces the logout to sibling
// contexts, and navigates to the login entry point.
func (c *Coordinator) Logout(ctx context.Context) {
	session, ok := c.store.Read()
	c.store.Clear()
	if ok {
		if err := c.peer.Announce(ctx, domain.SessionUpdateLogout, session.User.Username); err != nil {
			c.logger.Warn("logout announcement failed", zap.Error(err))
		}
	}
	c.redirect()
}

// CheckSessionValidity verifies the stored session against the server and
// refreshes the cached profile. Without a session it navigates to the login
// entry point.
func (c *Coordinator) CheckSessionValidity(ctx context.Context) error {
	session, ok := c.store.Read()
	if !ok {
		if !c.atLogin() {
			c.redirect()
		}
		return domain.ErrNoSession
	}
	if c.validator == nil {
		return nil
	}

	profile, err := c.validator.Validate(ctx)
	if err != nil {
		c.logger.Warn("session validation failed",
			zap.String("username", session.User.Username),
			zap.Error(err),
		)
		c.store.Clear()
		if !c.atLogin() {
			c.redirect()
		}
		return err
	}

	session.User = profile
	c.store.Write(*session)
	return nil
}

// handleForceLogout reacts to an eviction broadcast from a sibling context.
// The peer layer already dropped the sender's own messages.
func (c *Coordinator) handleForceLogout(eviction domain.ForceLogout) {
	session, ok := c.store.Read()
	if !ok || session.User.Username != eviction.Username {
		return
	}
	if !eviction.Targets(c.tabID) {
		return
	}

	c.logger.Info("session evicted by another context",
		zap.String("username", eviction.Username),
		zap.String("from_tab", eviction.FromTab),
	)
	c.store.Clear()
	c.notifier.Notify(port.NotifyWarning, "Your account signed in elsewhere; this session has ended")

	// Give the notification time to render before navigating away.
	c.schedule(c.redirectDelay, func() {
		if !c.atLogin() {
			c.redirect()
		}
	})
}

func (c *Coordinator) handleSessionUpdate(update domain.SessionUpdate) {
	// Informational only.
	c.logger.Debug("session update from sibling context",
		zap.String("action", update.Action),
		zap.String("username", update.Username),
		zap.String("tab_id", update.TabID),
	)
}

// HandleUnauthorized implements httpclient.UnauthorizedHandler. Reached only
// for a confirmed non-login 401: it rechecks session validity once before
// destroying state, so a transient false 401 cannot kill a live session.
// Teardown via 401 is a local event and is not broadcast to sibling
// contexts.
func (c *Coordinator) HandleUnauthorized(ctx context.Context) {
	c.unauthMu.Lock()
	defer c.unauthMu.Unlock()

	session, ok := c.store.Read()
	if !ok {
		if !c.atLogin() {
			c.redirect()
		}
		return
	}

	if c.validator != nil {
		if _, err := c.validator.Validate(ctx); err == nil {
			c.logger.Info("session still valid after 401, keeping credentials",
				zap.String("username", session.User.Username),
			)
			return
		} else {
			c.logger.Warn("session recheck failed", zap.Error(err))
		}
	}

	c.store.Clear()
	c.notifier.Notify(port.NotifyWarning, domain.ErrSessionExpired.Error())
	if !c.atLogin() {
		c.redirect()
	}
}
