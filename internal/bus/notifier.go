package bus

import "sync"

// Notifier is the outbound notification capability components depend on,
// instead of the bus itself, so tests can capture what would have reached
// the user.
type Notifier interface {
	Notify(message, displayAs string)
}

// UntilSuccess wraps a Notifier with the chain's one-notification policy:
// messages flow until a success is reported, after which everything is
// suppressed. One value serves one resolution chain; it is not reused.
type UntilSuccess struct {
	mu        sync.Mutex
	inner     Notifier
	succeeded bool
}

func NewUntilSuccess(inner Notifier) *UntilSuccess {
	return &UntilSuccess{inner: inner}
}

func (u *UntilSuccess) Notify(message, displayAs string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.succeeded {
		return
	}
	if displayAs == DisplaySuccess {
		u.succeeded = true
	}
	u.inner.Notify(message, displayAs)
}

// NopNotifier discards notifications; used by the CLI's quiet mode and as
// a safe default.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) {}
