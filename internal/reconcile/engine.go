package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/evanofslack/cloudflare-ddns/internal/config"
	"github.com/evanofslack/cloudflare-ddns/internal/history"
	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
	"github.com/evanofslack/cloudflare-ddns/internal/provider"
	"github.com/evanofslack/cloudflare-ddns/internal/zone"
)

// Watcher is the part of ipwatch.Watcher the engine drives.
type Watcher interface {
	Refresh(ctx context.Context) error
	HasChanged() bool
	Commit()
	CurrentIP() netip.Addr
}

type Engine interface {
	RunCycle(ctx context.Context, zones []zone.ID) (Results, error)
}

type engine struct {
	watcher     Watcher
	dnsProvider provider.Provider
	history     history.Store
	dryRun      bool
	protected   map[string]bool
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewEngine wires the cycle dependencies. hs may be nil to disable the update
// history.
func NewEngine(w Watcher, dp provider.Provider, hs history.Store, cfg *config.Config, metrics *metrics.Metrics) *engine {
	protected := make(map[string]bool)
	for _, r := range cfg.Reconcile.ProtectedRecords {
		protected[normalizeName(r)] = true
	}
	return &engine{
		watcher:     w,
		dnsProvider: dp,
		history:     hs,
		dryRun:      cfg.Reconcile.DryRun,
		protected:   protected,
		metrics:     metrics,
		now:         time.Now,
	}
}

// RunCycle refreshes the public IP and, if it changed, brings every A record
// in zones up to date before confirming the new IP with the watcher.
//
// A failed refresh aborts the cycle. Failures listing or updating records
// are collected in Results and do not stop the remaining zones; the IP is
// confirmed regardless, so those records are only retried after the next IP
// change.
func (e *engine) RunCycle(ctx context.Context, zones []zone.ID) (Results, error) {
	if err := e.watcher.Refresh(ctx); err != nil {
		return Results{}, fmt.Errorf("refresh public ip: %w", err)
	}
	if !e.watcher.HasChanged() {
		slog.Info("Public IP unchanged, ending cycle", "ip", e.watcher.CurrentIP())
		return Results{}, nil
	}
	e.metrics.IncIPChange()

	target := e.watcher.CurrentIP()
	results := Results{Changed: true, IP: target}
	for _, z := range zones {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("cycle interrupted: %w", err)
		}
		e.processZone(ctx, z, target, &results)
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("cycle interrupted: %w", err)
	}

	if e.dryRun {
		slog.Info("Dry run mode - not confirming public IP", "ip", target, "would_update", len(results.Updated))
		return results, nil
	}

	e.watcher.Commit()
	results.Committed = true
	if len(results.Failures) > 0 {
		slog.Warn("Confirmed public IP with failed operations, they will not be retried until the IP changes", "ip", target, "failures", len(results.Failures))
	}
	return results, nil
}

func (e *engine) processZone(ctx context.Context, z zone.ID, target netip.Addr, results *Results) {
	slog.Info("Processing zone", "zone", z)
	records, err := e.dnsProvider.ListRecords(ctx, z)
	if err != nil {
		slog.Error("Failed to list records", "zone", z, "error", err)
		results.Failures = append(results.Failures, OperationResult{
			Zone:  z,
			Op:    "list",
			Error: err.Error(),
		})
		return
	}
	slog.Debug("Got records from dns provider", "zone", z, "count", len(records))

	zoneLabel := z.String()
	for _, record := range records {
		before := record

		if e.isProtected(record.Name) {
			slog.Warn("Skipping protected record", "zone", z, "name", record.Name, "type", record.Type)
			e.metrics.IncRecordAction("skip", zoneLabel)
			results.Skipped++
			continue
		}

		switch Decide(&record, target) {
		case ActionNoop:
			slog.Debug("Record needs no update", "zone", z, "name", record.Name, "type", record.Type)
			e.metrics.IncRecordAction("noop", zoneLabel)
			results.Unchanged++

		case ActionError:
			slog.Error("Record content is not an IPv4 address", "zone", z, "id", record.ID, "name", record.Name, "content", record.Content)
			e.metrics.IncRecordAction("error", zoneLabel)
			results.Invalid = append(results.Invalid, record)

		case ActionUpdated:
			if e.dryRun {
				slog.Info("Dry run mode - would update record", "zone", z, "name", record.Name, "from", before.Content, "to", record.Content)
				e.metrics.IncRecordAction("updated", zoneLabel)
				results.Updated = append(results.Updated, record)
				continue
			}
			if err := e.dnsProvider.UpdateRecord(ctx, z, record); err != nil {
				slog.Error("Failed to update record", "zone", z, "id", record.ID, "name", record.Name, "error", err)
				e.metrics.IncRecordAction("failed", zoneLabel)
				results.Failures = append(results.Failures, OperationResult{
					Zone:   z,
					Record: record,
					Op:     "update",
					Error:  err.Error(),
				})
				continue
			}
			slog.Info("Updated record", "zone", z, "name", record.Name, "from", before.Content, "to", record.Content)
			e.metrics.IncRecordAction("updated", zoneLabel)
			results.Updated = append(results.Updated, record)
			e.recordHistory(ctx, z, before, record)
		}
	}
}

func (e *engine) recordHistory(ctx context.Context, z zone.ID, before, after provider.Record) {
	if e.history == nil {
		return
	}
	entry := history.Entry{
		Zone:      z.String(),
		RecordID:  after.ID,
		Before:    before.RR(),
		After:     after.RR(),
		AppliedAt: e.now().Unix(),
	}
	if err := e.history.Record(ctx, entry); err != nil {
		slog.Warn("Failed to record update history", "zone", z, "id", after.ID, "error", err)
	}
}

func (e *engine) isProtected(name string) bool {
	return e.protected[normalizeName(name)]
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}
