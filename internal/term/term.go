// Package term implements the interactive prompt and notification ports
// over a line-oriented terminal.
package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/core/port"
)

// Prompt asks conflict questions on a terminal and reads y/N answers.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompt constructs a Prompt over the given streams.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

var _ port.ConfirmationPrompt = (*Prompt)(nil)

// ConfirmServerConflict shows the server-reported sessions for the account
// and asks whether to evict them.
func (p *Prompt) ConfirmServerConflict(ctx context.Context, username string, conflict domain.SessionConflict) (bool, error) {
	fmt.Fprintf(p.out, "Account %q is already signed in elsewhere.\n", username)
	if conflict.Message != "" {
		fmt.Fprintf(p.out, "%s\n", conflict.Message)
	}
	for _, session := range conflict.ActiveSessions {
		fmt.Fprintf(p.out, "  - %s (%s), last active %s\n",
			session.IPAddress, session.UserAgent, session.LastActivityTime().Format("2006-01-02 15:04:05"))
	}
	return p.confirm(ctx, "Sign out the other sessions and continue? [y/N]: ")
}

// ConfirmTabConflict asks whether to take over from other local instances
// holding the same account.
func (p *Prompt) ConfirmTabConflict(ctx context.Context, username string, tabCount int) (bool, error) {
	fmt.Fprintf(p.out, "Account %q is signed in on %d other instance(s) on this machine.\n", username, tabCount)
	return p.confirm(ctx, "Sign them out and continue here? [y/N]: ")
}

func (p *Prompt) confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprint(p.out, question)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return false, a.err
		}
		reply := strings.ToLower(strings.TrimSpace(a.line))
		return reply == "y" || reply == "yes", nil
	}
}

// Notifier prints notifications with a level tag.
type Notifier struct {
	out io.Writer
}

// NewNotifier constructs a Notifier over the given stream.
func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

var _ port.Notifier = (*Notifier)(nil)

// Notify writes one tagged line.
func (n *Notifier) Notify(level port.NotifyLevel, message string) {
	fmt.Fprintf(n.out, "[%s] %s\n", strings.ToUpper(string(level)), message)
}
