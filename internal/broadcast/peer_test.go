package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/metrolabs/equiptrack/internal/core/domain"
)

type fakeSessions struct {
	mu      sync.Mutex
	session *domain.Session
}

func (f *fakeSessions) Read() (*domain.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, false
	}
	copied := *f.session
	return &copied, true
}

func (f *fakeSessions) set(session *domain.Session) {
	f.mu.Lock()
	f.session = session
	f.mu.Unlock()
}

func startPeer(t *testing.T, bus *LocalBus, tabID string, sessions *fakeSessions) *Peer {
	t.Helper()
	peer := NewPeer(tabID, bus, sessions, zaptest.NewLogger(t)).
		WithCollectWindow(150 * time.Millisecond)
	if err := peer.Start(context.Background()); err != nil {
		t.Fatalf("start peer %s: %v", tabID, err)
	}
	t.Cleanup(peer.Close)
	return peer
}

func TestCheckLoginConflictNoPeers(t *testing.T) {
	bus := NewLocalBus()
	peer := startPeer(t, bus, "tab-a", &fakeSessions{})

	start := time.Now()
	check, err := peer.CheckLoginConflict(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.HasConflict {
		t.Fatal("expected no conflict with no peers")
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected the full collection window to elapse, got %v", elapsed)
	}
}

func TestCheckLoginConflictDetectsPeerWithSameUser(t *testing.T) {
	bus := NewLocalBus()

	other := &fakeSessions{}
	other.set(&domain.Session{
		TabID:       "tab-b",
		AccessToken: "token-b",
		User:        domain.UserProfile{Username: "bob"},
	})
	startPeer(t, bus, "tab-b", other)

	checker := startPeer(t, bus, "tab-a", &fakeSessions{})

	check, err := checker.CheckLoginConflict(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !check.HasConflict {
		t.Fatal("expected a conflict")
	}
	if len(check.Conflicts) != 1 {
		t.Fatalf("expected exactly one conflicting peer, got %d", len(check.Conflicts))
	}
	if check.Conflicts[0].TabID != "tab-b" {
		t.Fatalf("expected conflict from tab-b, got %q", check.Conflicts[0].TabID)
	}
}

func TestCheckLoginConflictIgnoresDifferentUser(t *testing.T) {
	bus := NewLocalBus()

	other := &fakeSessions{}
	other.set(&domain.Session{
		TabID:       "tab-b",
		AccessToken: "token-b",
		User:        domain.UserProfile{Username: "alice"},
	})
	startPeer(t, bus, "tab-b", other)

	checker := startPeer(t, bus, "tab-a", &fakeSessions{})

	check, err := checker.CheckLoginConflict(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.HasConflict {
		t.Fatalf("a peer holding a different account is not a conflict: %+v", check.Conflicts)
	}
}

func TestCheckLoginConflictRequiresStart(t *testing.T) {
	peer := NewPeer("tab-a", NewLocalBus(), &fakeSessions{}, zaptest.NewLogger(t))

	if _, err := peer.CheckLoginConflict(context.Background(), "bob"); err != ErrNotStarted {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestCheckLoginConflictCancelledContext(t *testing.T) {
	bus := NewLocalBus()
	peer := startPeer(t, bus, "tab-a", &fakeSessions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := peer.CheckLoginConflict(ctx, "bob"); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLateResponseDiscarded(t *testing.T) {
	bus := NewLocalBus()
	peer := startPeer(t, bus, "tab-a", &fakeSessions{})

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	current := base
	var mu sync.Mutex
	peer.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	})

	peer.mu.Lock()
	peer.pending["req-1"] = &pendingCheck{
		username: "bob",
		expires:  base.Add(150 * time.Millisecond),
	}
	peer.mu.Unlock()

	mu.Lock()
	current = base.Add(time.Second)
	mu.Unlock()

	peer.collectResponse(domain.LoginCheckResponse{
		RequestID: "req-1",
		HasUser:   true,
		Username:  "bob",
		TabID:     "tab-b",
	})

	peer.mu.Lock()
	_, exists := peer.pending["req-1"]
	peer.mu.Unlock()
	if exists {
		t.Fatal("expected the expired correlation row to be dropped")
	}
}

func TestForceLogoutSkipsSender(t *testing.T) {
	bus := NewLocalBus()

	sender := startPeer(t, bus, "tab-a", &fakeSessions{})
	receiver := startPeer(t, bus, "tab-b", &fakeSessions{})

	var (
		mu            sync.Mutex
		senderEvicted bool
		received      []domain.ForceLogout
	)
	sender.OnForceLogout(func(domain.ForceLogout) {
		mu.Lock()
		senderEvicted = true
		mu.Unlock()
	})
	done := make(chan struct{})
	receiver.OnForceLogout(func(eviction domain.ForceLogout) {
		mu.Lock()
		received = append(received, eviction)
		mu.Unlock()
		close(done)
	})

	if err := sender.ForceLogoutOthers(context.Background(), "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the eviction to arrive")
	}

	mu.Lock()
	defer mu.Unlock()
	if senderEvicted {
		t.Fatal("a tab must never force out its own session")
	}
	if len(received) != 1 || received[0].Username != "bob" || received[0].FromTab != "tab-a" {
		t.Fatalf("unexpected eviction payload: %+v", received)
	}
	if !received[0].Targets("tab-b") {
		t.Fatal("nil target list must address every other tab")
	}
}

func TestAnnounceReachesOtherPeersOnly(t *testing.T) {
	bus := NewLocalBus()

	announcer := startPeer(t, bus, "tab-a", &fakeSessions{})
	listener := startPeer(t, bus, "tab-b", &fakeSessions{})

	var (
		mu       sync.Mutex
		selfSeen bool
		updates  []domain.SessionUpdate
	)
	announcer.OnSessionUpdate(func(domain.SessionUpdate) {
		mu.Lock()
		selfSeen = true
		mu.Unlock()
	})
	done := make(chan struct{})
	listener.OnSessionUpdate(func(update domain.SessionUpdate) {
		mu.Lock()
		updates = append(updates, update)
		mu.Unlock()
		close(done)
	})

	if err := announcer.Announce(context.Background(), domain.SessionUpdateLogin, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the announcement")
	}

	mu.Lock()
	defer mu.Unlock()
	if selfSeen {
		t.Fatal("announcements loop back and must be self-filtered")
	}
	if len(updates) != 1 || updates[0].Action != domain.SessionUpdateLogin || updates[0].Username != "bob" {
		t.Fatalf("unexpected announcement payload: %+v", updates)
	}
}

func TestLoginCheckAnswersReportNoSession(t *testing.T) {
	bus := NewLocalBus()

	startPeer(t, bus, "tab-b", &fakeSessions{}) // signed out

	checker := startPeer(t, bus, "tab-a", &fakeSessions{})

	check, err := checker.CheckLoginConflict(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.HasConflict {
		t.Fatal("a signed-out peer must not count as a conflict")
	}
}
