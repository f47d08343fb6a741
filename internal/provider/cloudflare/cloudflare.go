package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/cloudflare-ddns/internal/config"
	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
	"github.com/evanofslack/cloudflare-ddns/internal/provider"
	"github.com/evanofslack/cloudflare-ddns/internal/zone"
)

const perPage = 100

type CloudflareProvider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
}

// New builds a provider that authenticates with an API token. httpClient is
// shared with the rest of the process; nil uses the library default.
func New(cfg config.DNS, httpClient *http.Client, metrics *metrics.Metrics) (*CloudflareProvider, error) {
	token := cfg.Token
	if token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}

	var opts []cloudflare.Option
	if httpClient != nil {
		opts = append(opts, cloudflare.HTTPClient(httpClient))
	}
	if cfg.APIURL != "" {
		opts = append(opts, cloudflare.BaseURL(cfg.APIURL))
	}

	client, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
	}, nil
}

func (p *CloudflareProvider) ListRecords(ctx context.Context, zoneID zone.ID) ([]provider.Record, error) {
	slog.Info("Getting DNS records", "zone", zoneID)
	start := time.Now()
	rc := cloudflare.ZoneIdentifier(zoneID.String())

	var allRecords []cloudflare.DNSRecord
	page := 1
	for {
		params := cloudflare.ListDNSRecordsParams{
			ResultInfo: cloudflare.ResultInfo{
				Page:    page,
				PerPage: perPage,
			},
		}

		records, resultInfo, err := p.client.ListDNSRecords(ctx, rc, params)
		if err != nil {
			p.metrics.IncDNSRequest("read", zoneID.String(), false)
			return nil, fmt.Errorf("failed to list DNS records: %w", err)
		}

		allRecords = append(allRecords, records...)
		if resultInfo == nil || page >= resultInfo.TotalPages {
			break
		}
		page++
	}

	result := make([]provider.Record, 0, len(allRecords))
	for _, r := range allRecords {
		result = append(result, fromCloudflare(r))
	}

	p.metrics.IncDNSRequest("read", zoneID.String(), true)
	slog.Debug("Retrieved DNS records", "zone", zoneID, "count", len(result), "duration", time.Since(start))
	return result, nil
}

func (p *CloudflareProvider) UpdateRecord(ctx context.Context, zoneID zone.ID, record provider.Record) error {
	slog.Info("Updating DNS record", "zone", zoneID, "id", record.ID, "name", record.Name, "type", record.Type, "content", record.Content)
	start := time.Now()

	if record.ID == "" {
		return fmt.Errorf("record %s has no id", record.Name)
	}

	params := cloudflare.UpdateDNSRecordParams{
		ID:      record.ID,
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Content,
		TTL:     record.TTL,
		Proxied: record.Proxied,
		Tags:    record.Tags,
	}

	_, err := p.client.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID.String()), params)
	if err != nil {
		p.metrics.IncDNSRequest("update", zoneID.String(), false)
		return fmt.Errorf("failed to update DNS record: %w", err)
	}

	p.metrics.IncDNSRequest("update", zoneID.String(), true)
	slog.Debug("Updated DNS record", "zone", zoneID, "id", record.ID, "name", record.Name, "duration", time.Since(start))
	return nil
}

func fromCloudflare(r cloudflare.DNSRecord) provider.Record {
	return provider.Record{
		ID:         r.ID,
		Name:       r.Name,
		Type:       r.Type,
		Content:    r.Content,
		TTL:        r.TTL,
		Proxied:    r.Proxied,
		Proxiable:  r.Proxiable,
		Locked:     r.Locked,
		Comment:    r.Comment,
		Tags:       r.Tags,
		CreatedOn:  r.CreatedOn,
		ModifiedOn: r.ModifiedOn,
		ZoneID:     r.ZoneID,
		ZoneName:   r.ZoneName,
	}
}
