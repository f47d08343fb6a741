// Package ipwatch tracks the public IPv4 address across polling cycles.
//
// A Watcher holds the address seen by the most recent refresh and the address
// last confirmed with Commit. Until the first Commit the watcher is
// unconfirmed and always reports a change, which forces an initial sync on
// every process start.
package ipwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
)

// DefaultEndpoint answers with the caller's public IPv4 address as plain text.
const DefaultEndpoint = "https://checkip.amazonaws.com"

var ErrIPFetch = errors.New("fetch public ip")

// IPParseError reports a lookup response that is not an IPv4 dotted quad.
type IPParseError struct {
	Text string
	Err  error
}

func (e *IPParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse public ip %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("parse public ip %q: not an IPv4 address", e.Text)
}

func (e *IPParseError) Unwrap() error { return e.Err }

// Fetcher returns the plain-text public IP reported by endpoint.
type Fetcher interface {
	FetchPublicIP(ctx context.Context, endpoint string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, endpoint string) (string, error)

func (f FetcherFunc) FetchPublicIP(ctx context.Context, endpoint string) (string, error) {
	return f(ctx, endpoint)
}

// Watcher is not safe for concurrent use. It is owned by the goroutine that
// runs polling cycles.
type Watcher struct {
	endpoint string
	fetcher  Fetcher
	previous netip.Addr // zero until the first Commit
	current  netip.Addr
}

// New builds a watcher and performs the first refresh. It fails if the
// endpoint cannot be read or does not return an IPv4 address.
func New(ctx context.Context, endpoint string, fetcher Fetcher) (*Watcher, error) {
	if fetcher == nil {
		return nil, errors.New("ipwatch: fetcher is required")
	}
	w := &Watcher{
		endpoint: endpoint,
		fetcher:  fetcher,
	}
	if err := w.Refresh(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Refresh replaces the current address with a fresh lookup. The confirmed
// address is never touched, and on error the current address is kept.
func (w *Watcher) Refresh(ctx context.Context) error {
	text, err := w.fetcher.FetchPublicIP(ctx, w.endpoint)
	if err != nil {
		return fmt.Errorf("%w from %s: %w", ErrIPFetch, w.endpoint, err)
	}
	addr, err := ParseIPv4(text)
	if err != nil {
		return err
	}
	w.current = addr
	return nil
}

// HasChanged reports whether the current address differs from the confirmed
// one. An unconfirmed watcher always reports true.
func (w *Watcher) HasChanged() bool {
	if !w.previous.IsValid() {
		slog.Info("Previous public IP unknown, treating as changed", "current", w.current)
		return true
	}
	if w.previous != w.current {
		slog.Info("Public IP changed", "from", w.previous, "to", w.current)
		return true
	}
	return false
}

// Commit marks the current address as confirmed.
func (w *Watcher) Commit() {
	w.previous = w.current
}

func (w *Watcher) CurrentIP() netip.Addr {
	return w.current
}

// PreviousIP returns the confirmed address and false while unconfirmed.
func (w *Watcher) PreviousIP() (netip.Addr, bool) {
	return w.previous, w.previous.IsValid()
}

func (w *Watcher) Endpoint() string {
	return w.endpoint
}

// ParseIPv4 trims surrounding whitespace and parses text as a dotted quad.
// IPv6 forms, including IPv4-mapped addresses, are rejected.
func ParseIPv4(text string) (netip.Addr, error) {
	trimmed := strings.TrimSpace(text)
	addr, err := netip.ParseAddr(trimmed)
	if err != nil {
		return netip.Addr{}, &IPParseError{Text: trimmed, Err: err}
	}
	if !addr.Is4() {
		return netip.Addr{}, &IPParseError{Text: trimmed}
	}
	return addr, nil
}
