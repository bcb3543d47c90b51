package port

import (
	"context"

	"github.com/metrolabs/equiptrack/internal/core/domain"
)

// SessionValidator performs the best-effort session-validity recheck used
// before tearing a session down on a confirmed 401. A nil error means the
// session is still valid server-side.
type SessionValidator interface {
	Validate(ctx context.Context) (domain.UserProfile, error)
}

// ConnectivityProbe reports whether the runtime believes it has network
// connectivity. The request engine fails fast when it does not.
type ConnectivityProbe interface {
	Online() bool
}

// OnlineFunc adapts a function to a ConnectivityProbe.
type OnlineFunc func() bool

// Online implements ConnectivityProbe.
func (f OnlineFunc) Online() bool { return f() }
