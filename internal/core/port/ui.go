package port

import (
	"context"

	"github.com/metrolabs/equiptrack/internal/core/domain"
)

// ConfirmationPrompt asks the user to resolve a detected session collision.
// Implementations block until the user decides; true means "force login".
type ConfirmationPrompt interface {
	// ConfirmServerConflict presents the server-reported active sessions
	// (IP, user agent, timestamps) behind a binary choice.
	ConfirmServerConflict(ctx context.Context, username string, conflict domain.SessionConflict) (bool, error)
	// ConfirmTabConflict presents a client-detected collision. Only the
	// number of conflicting tabs is known; the server did not confirm.
	ConfirmTabConflict(ctx context.Context, username string, tabCount int) (bool, error)
}

// NotifyLevel classifies user-facing notifications.
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifySuccess NotifyLevel = "success"
	NotifyWarning NotifyLevel = "warning"
	NotifyError   NotifyLevel = "error"
)

// Notifier surfaces a message to the user. Expiry and forced logout always
// notify before any redirect; transient retries stay silent.
type Notifier interface {
	Notify(level NotifyLevel, message string)
}
