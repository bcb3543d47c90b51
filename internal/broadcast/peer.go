package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/core/port"
)

// ErrNotStarted indicates a protocol operation before Start.
var ErrNotStarted = errors.New("peer not started")

// SessionSource exposes the current session for answering login checks.
type SessionSource interface {
	Read() (*domain.Session, bool)
}

// Peer gives one coordinator a presence on the shared broadcast channel: it
// answers login check requests for its own session, runs conflict probes
// against the other peers, and relays force-logout and session-update
// messages to the coordinator.
type Peer struct {
	tabID          string
	bus            port.Bus
	sessions       SessionSource
	logger         *zap.Logger
	collectWindow  time.Duration
	publishTimeout time.Duration
	now            func() time.Time

	mu              sync.Mutex
	pending         map[string]*pendingCheck
	onForceLogout   func(domain.ForceLogout)
	onSessionUpdate func(domain.SessionUpdate)
	unsubscribe     func()
}

// pendingCheck is one row of the request/response correlation table. Rows
// expire with the collection window; responses arriving later are discarded.
type pendingCheck struct {
	username  string
	expires   time.Time
	responses []domain.LoginCheckResponse
}

// NewPeer constructs a Peer for the given tab over the supplied bus.
func NewPeer(tabID string, bus port.Bus, sessions SessionSource, logger *zap.Logger) *Peer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Peer{
		tabID:          tabID,
		bus:            bus,
		sessions:       sessions,
		logger:         logger,
		collectWindow:  time.Second,
		publishTimeout: 3 * time.Second,
		pending:        make(map[string]*pendingCheck),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithCollectWindow overrides the response collection window.
func (p *Peer) WithCollectWindow(window time.Duration) *Peer {
	if window > 0 {
		p.collectWindow = window
	}
	return p
}

// WithClock overrides the internal clock for deterministic tests.
func (p *Peer) WithClock(clock func() time.Time) *Peer {
	if clock != nil {
		p.now = clock
	}
	return p
}

// TabID returns this peer's tab identifier.
func (p *Peer) TabID() string { return p.tabID }

// OnForceLogout registers the coordinator callback for eviction messages.
// The peer has already filtered out the sender's own broadcasts.
func (p *Peer) OnForceLogout(fn func(domain.ForceLogout)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onForceLogout = fn
}

// OnSessionUpdate registers the callback for informational announcements.
func (p *Peer) OnSessionUpdate(fn func(domain.SessionUpdate)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSessionUpdate = fn
}

// Start subscribes the peer to the channel.
func (p *Peer) Start(ctx context.Context) error {
	unsubscribe, err := p.bus.Subscribe(ctx, p.handle)
	if err != nil {
		return fmt.Errorf("join broadcast channel: %w", err)
	}
	p.mu.Lock()
	p.unsubscribe = unsubscribe
	p.mu.Unlock()

	p.logger.Debug("joined broadcast channel", zap.String("tab_id", p.tabID))
	return nil
}

// Close leaves the channel. Pending conflict checks resolve with whatever
// responses they already collected.
func (p *Peer) Close() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// CheckLoginConflict broadcasts a login check and collects matching
// responses for the collection window. The result is a lower bound: peers
// that are slow or frozen inside the window are not counted.
func (p *Peer) CheckLoginConflict(ctx context.Context, username string) (domain.ConflictCheck, error) {
	p.mu.Lock()
	if p.unsubscribe == nil {
		p.mu.Unlock()
		return domain.ConflictCheck{}, ErrNotStarted
	}
	requestID := uuid.NewString()
	p.pending[requestID] = &pendingCheck{
		username: username,
		expires:  p.now().Add(p.collectWindow),
	}
	p.mu.Unlock()

	// Safety net for abandoned rows (context cancelled before collection):
	// the table never leaks entries.
	cleanup := time.AfterFunc(2*p.collectWindow, func() {
		p.mu.Lock()
		delete(p.pending, requestID)
		p.mu.Unlock()
	})
	defer cleanup.Stop()

	msg, err := domain.NewMessage(domain.MessageLoginCheckRequest, domain.LoginCheckRequest{
		Username:  username,
		RequestID: requestID,
		FromTab:   p.tabID,
	})
	if err != nil {
		return domain.ConflictCheck{}, err
	}
	if err := p.bus.Publish(ctx, msg); err != nil {
		p.mu.Lock()
		delete(p.pending, requestID)
		p.mu.Unlock()
		return domain.ConflictCheck{}, err
	}

	timer := time.NewTimer(p.collectWindow)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.pending, requestID)
		p.mu.Unlock()
		return domain.ConflictCheck{}, ctx.Err()
	case <-timer.C:
	}

	p.mu.Lock()
	check := p.pending[requestID]
	delete(p.pending, requestID)
	p.mu.Unlock()

	result := domain.ConflictCheck{}
	if check == nil {
		return result, nil
	}
	for _, response := range check.responses {
		if response.HasUser && response.Username == username {
			result.Conflicts = append(result.Conflicts, response)
		}
	}
	result.HasConflict = len(result.Conflicts) > 0

	p.logger.Debug("login conflict check complete",
		zap.String("username", username),
		zap.Int("responses", len(check.responses)),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return result, nil
}

// ForceLogoutOthers evicts every other peer holding a session for username.
func (p *Peer) ForceLogoutOthers(ctx context.Context, username string) error {
	msg, err := domain.NewMessage(domain.MessageForceLogout, domain.ForceLogout{
		Username: username,
		FromTab:  p.tabID,
		// nil TargetTabs: all peers except the sender
	})
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, msg)
}

// Announce publishes an informational session update.
func (p *Peer) Announce(ctx context.Context, action, username string) error {
	msg, err := domain.NewMessage(domain.MessageSessionUpdate, domain.SessionUpdate{
		Action:   action,
		Username: username,
		TabID:    p.tabID,
	})
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, msg)
}

func (p *Peer) handle(msg domain.Message) {
	switch msg.Type {
	case domain.MessageLoginCheckRequest:
		var request domain.LoginCheckRequest
		if err := msg.DecodePayload(&request); err != nil {
			p.logger.Warn("bad login check request", zap.Error(err))
			return
		}
		if request.FromTab == p.tabID {
			return
		}
		p.answerLoginCheck(request)

	case domain.MessageLoginCheckResponse:
		var response domain.LoginCheckResponse
		if err := msg.DecodePayload(&response); err != nil {
			p.logger.Warn("bad login check response", zap.Error(err))
			return
		}
		if response.TabID == p.tabID {
			return
		}
		p.collectResponse(response)

	case domain.MessageForceLogout:
		var eviction domain.ForceLogout
		if err := msg.DecodePayload(&eviction); err != nil {
			p.logger.Warn("bad force logout message", zap.Error(err))
			return
		}
		// A tab never forces out its own session.
		if eviction.FromTab == p.tabID {
			return
		}
		p.mu.Lock()
		callback := p.onForceLogout
		p.mu.Unlock()
		if callback != nil {
			callback(eviction)
		}

	case domain.MessageSessionUpdate:
		var update domain.SessionUpdate
		if err := msg.DecodePayload(&update); err != nil {
			p.logger.Warn("bad session update message", zap.Error(err))
			return
		}
		if update.TabID == p.tabID {
			return
		}
		p.mu.Lock()
		callback := p.onSessionUpdate
		p.mu.Unlock()
		if callback != nil {
			callback(update)
		}
	}
}

// answerLoginCheck responds with this peer's session presence, keyed by the
// request's correlation id.
func (p *Peer) answerLoginCheck(request domain.LoginCheckRequest) {
	response := domain.LoginCheckResponse{
		RequestID: request.RequestID,
		TabID:     p.tabID,
	}
	if session, ok := p.sessions.Read(); ok {
		response.HasUser = true
		response.Username = session.User.Username
	}

	msg, err := domain.NewMessage(domain.MessageLoginCheckResponse, response)
	if err != nil {
		p.logger.Warn("encode login check response", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()
	if err := p.bus.Publish(ctx, msg); err != nil {
		p.logger.Warn("answer login check", zap.Error(err))
	}
}

func (p *Peer) collectResponse(response domain.LoginCheckResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()

	check, ok := p.pending[response.RequestID]
	if !ok {
		return
	}
	if p.now().After(check.expires) {
		// Late response: the collection window closed, do not count it.
		delete(p.pending, response.RequestID)
		return
	}
	check.responses = append(check.responses, response)
}
