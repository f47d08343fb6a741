package reconcile

import (
	"net/netip"

	"github.com/evanofslack/cloudflare-ddns/internal/provider"
	"github.com/evanofslack/cloudflare-ddns/internal/zone"
)

// Results summarizes one polling cycle. A cycle that found the public IP
// unchanged returns the zero value.
type Results struct {
	Changed   bool
	Committed bool // false in dry-run mode
	IP        netip.Addr
	Updated   []provider.Record
	Unchanged int
	Skipped   int
	Invalid   []provider.Record
	Failures  []OperationResult
}

type OperationResult struct {
	Zone   zone.ID
	Record provider.Record
	Op     string
	Error  string
}
