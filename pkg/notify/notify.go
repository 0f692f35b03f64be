// Package notify keeps short lived user notifications such as "rule learned" or "import failed".
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays active before it is dismissed automatically.
const DefaultTTL = 3500 * time.Millisecond

// Kind classifies a notification.
type Kind int

const (
	Info Kind = iota
	RuleLearned
	RulesImported
	ImportFailed
)

func (k Kind) String() string {
	switch k {
	case RuleLearned:
		return "rule_learned"
	case RulesImported:
		return "rules_imported"
	case ImportFailed:
		return "import_failed"
	default:
		return "info"
	}
}

// Notification is a single message shown to the user.
type Notification struct {
	ID        string
	Kind      Kind
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Sink receives every pushed notification, e.g. to print it as it happens.
type Sink func(Notification)

// Config controls notifier behaviour. Zero values select defaults.
type Config struct {
	TTL  time.Duration
	Now  func() time.Time
	Sink Sink
}

// Notifier owns the set of active notifications and their identifiers.
type Notifier struct {
	mu     sync.Mutex
	active []Notification
	ttl    time.Duration
	now    func() time.Time
	sink   Sink
	logger *slog.Logger
}

// New creates a notifier.
func New(cfg Config, logger *slog.Logger) *Notifier {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		ttl:    cfg.TTL,
		now:    cfg.Now,
		sink:   cfg.Sink,
		logger: logger,
	}
}

// Push records a new notification and hands it to the sink.
func (n *Notifier) Push(kind Kind, message string) Notification {
	now := n.now()
	note := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(n.ttl),
	}

	n.mu.Lock()
	n.active = append(n.pruneLocked(now), note)
	n.mu.Unlock()

	n.logger.Debug("notification", "id", note.ID, "kind", kind.String(), "message", message)
	if n.sink != nil {
		n.sink(note)
	}
	return note
}

// RuleLearned announces a learned or updated rule.
func (n *Notifier) RuleLearned(keyword, category string) Notification {
	return n.Push(RuleLearned, fmt.Sprintf("Rule added/updated: '%s' → %s", keyword, category))
}

// RulesImported announces a successful wholesale import.
func (n *Notifier) RulesImported() Notification {
	return n.Push(RulesImported, "Rules imported and replaced.")
}

// ImportFailed announces a rejected import.
func (n *Notifier) ImportFailed(err error) Notification {
	return n.Push(ImportFailed, fmt.Sprintf("Could not import rules: %v", err))
}

// Dismiss removes a notification before it expires. It reports whether id was active.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, note := range n.active {
		if note.ID == id {
			n.active = append(n.active[:i:i], n.active[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns unexpired notifications, oldest first.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.active = n.pruneLocked(n.now())
	out := make([]Notification, len(n.active))
	copy(out, n.active)
	return out
}

func (n *Notifier) pruneLocked(now time.Time) []Notification {
	kept := n.active[:0]
	for _, note := range n.active {
		if now.Before(note.ExpiresAt) {
			kept = append(kept, note)
		}
	}
	return kept
}
