package history

import (
	"github.com/libdns/libdns"
)

// Entry is one record update pushed to the provider.
type Entry struct {
	Zone      string    `json:"zone"`
	RecordID  string    `json:"recordId"`
	Before    libdns.RR `json:"before"`
	After     libdns.RR `json:"after"`
	AppliedAt int64     `json:"appliedAt"`
}
