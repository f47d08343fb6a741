package provider

import (
	"context"
	"time"

	"github.com/evanofslack/cloudflare-ddns/internal/zone"
	"github.com/libdns/libdns"
)

type Provider interface {
	ListRecords(ctx context.Context, zone zone.ID) ([]Record, error)
	UpdateRecord(ctx context.Context, zone zone.ID, record Record) error
}

// Record is a provider-side DNS entry. Only ID, Type, Content and Locked are
// interpreted; the remaining fields are carried back unchanged on update.
type Record struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	TTL        int       `json:"ttl"`
	Proxied    *bool     `json:"proxied,omitempty"`
	Proxiable  bool      `json:"proxiable"`
	Locked     bool      `json:"locked"`
	Comment    string    `json:"comment,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedOn  time.Time `json:"created_on"`
	ModifiedOn time.Time `json:"modified_on"`
	ZoneID     string    `json:"zone_id"`
	ZoneName   string    `json:"zone_name"`
}

// RR implements libdns.Record.
func (r Record) RR() libdns.RR {
	return libdns.RR{
		Name: r.Name,
		TTL:  time.Duration(r.TTL) * time.Second,
		Type: r.Type,
		Data: r.Content,
	}
}
