package reconcile

import (
	"log/slog"
	"net/netip"

	"github.com/evanofslack/cloudflare-ddns/internal/provider"
)

const recordTypeA = "A"

// Action is the outcome of deciding whether a record needs to change.
type Action int

const (
	ActionNoop Action = iota
	ActionUpdated
	ActionError
)

func (a Action) String() string {
	switch a {
	case ActionNoop:
		return "noop"
	case ActionUpdated:
		return "updated"
	case ActionError:
		return "error"
	default:
		return "unknown"
	}
}

// Decide points an unlocked A record at target. The first matching rule wins:
// non-A records and locked records are left alone, content that is not an
// IPv4 address is an error, and content equal to target needs no change.
// record is modified only when ActionUpdated is returned.
func Decide(record *provider.Record, target netip.Addr) Action {
	if record.Type != recordTypeA {
		return ActionNoop
	}
	if record.Locked {
		slog.Warn("Skipping locked record", "id", record.ID, "name", record.Name)
		return ActionNoop
	}
	current, err := netip.ParseAddr(record.Content)
	if err != nil || !current.Is4() {
		return ActionError
	}
	if current == target {
		return ActionNoop
	}
	record.Content = target.String()
	return ActionUpdated
}
