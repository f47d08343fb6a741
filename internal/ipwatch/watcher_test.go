package ipwatch

import (
	"context"
	"errors"
	"net/netip"
	"testing"
)

// sequenceFetcher returns its responses in order and repeats the last one.
type sequenceFetcher struct {
	responses []string
	errs      []error
	calls     int
	endpoints []string
}

func (s *sequenceFetcher) FetchPublicIP(ctx context.Context, endpoint string) (string, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	s.endpoints = append(s.endpoints, endpoint)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.responses[i], err
}

func TestNewPerformsFirstRefresh(t *testing.T) {
	f := &sequenceFetcher{responses: []string{"203.0.113.7\n"}}
	w, err := New(context.Background(), DefaultEndpoint, f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}
	if f.endpoints[0] != DefaultEndpoint {
		t.Errorf("endpoint = %q, want %q", f.endpoints[0], DefaultEndpoint)
	}
	if got, want := w.CurrentIP(), netip.MustParseAddr("203.0.113.7"); got != want {
		t.Errorf("CurrentIP = %v, want %v", got, want)
	}
	if _, ok := w.PreviousIP(); ok {
		t.Error("new watcher should be unconfirmed")
	}
	if w.Endpoint() != DefaultEndpoint {
		t.Errorf("Endpoint = %q", w.Endpoint())
	}
}

func TestNewFetchError(t *testing.T) {
	f := &sequenceFetcher{responses: []string{""}, errs: []error{errors.New("connection refused")}}
	_, err := New(context.Background(), "http://ip.invalid", f)
	if !errors.Is(err, ErrIPFetch) {
		t.Fatalf("error = %v, want ErrIPFetch", err)
	}
}

func TestNewParseError(t *testing.T) {
	_, err := New(context.Background(), "http://ip.invalid", &sequenceFetcher{responses: []string{"<html>oops</html>"}})
	var parseErr *IPParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *IPParseError", err)
	}
	if parseErr.Text != "<html>oops</html>" {
		t.Errorf("Text = %q", parseErr.Text)
	}
}

func TestNewRequiresFetcher(t *testing.T) {
	if _, err := New(context.Background(), DefaultEndpoint, nil); err == nil {
		t.Fatal("expected error for nil fetcher")
	}
}

func TestHasChangedBeforeCommit(t *testing.T) {
	for _, ip := range []string{"1.2.3.4", "0.0.0.0", "255.255.255.255"} {
		w, err := New(context.Background(), DefaultEndpoint, &sequenceFetcher{responses: []string{ip}})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if !w.HasChanged() {
			t.Errorf("HasChanged() = false for unconfirmed watcher with %s", ip)
		}
		// Still unconfirmed after asking again.
		if !w.HasChanged() {
			t.Errorf("HasChanged() = false on second call for %s", ip)
		}
	}
}

func TestCommitThenSameIP(t *testing.T) {
	f := &sequenceFetcher{responses: []string{"1.2.3.4", "1.2.3.4"}}
	w, err := New(context.Background(), DefaultEndpoint, f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Commit()
	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if w.HasChanged() {
		t.Error("HasChanged() = true after commit and identical refresh")
	}
	prev, ok := w.PreviousIP()
	if !ok || prev != netip.MustParseAddr("1.2.3.4") {
		t.Errorf("PreviousIP = %v, %v", prev, ok)
	}
}

func TestRefreshDetectsChange(t *testing.T) {
	f := &sequenceFetcher{responses: []string{"1.2.3.4", "5.6.7.8"}}
	w, err := New(context.Background(), DefaultEndpoint, f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Commit()
	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !w.HasChanged() {
		t.Error("HasChanged() = false after IP moved")
	}
	// Refresh never commits.
	if prev, _ := w.PreviousIP(); prev != netip.MustParseAddr("1.2.3.4") {
		t.Errorf("PreviousIP = %v, want 1.2.3.4", prev)
	}
	w.Commit()
	if w.HasChanged() {
		t.Error("HasChanged() = true after committing the new IP")
	}
}

func TestRefreshErrorKeepsState(t *testing.T) {
	f := &sequenceFetcher{
		responses: []string{"1.2.3.4", "", "not-an-ip"},
		errs:      []error{nil, errors.New("timeout")},
	}
	w, err := New(context.Background(), DefaultEndpoint, f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Commit()

	if err := w.Refresh(context.Background()); !errors.Is(err, ErrIPFetch) {
		t.Fatalf("Refresh error = %v, want ErrIPFetch", err)
	}
	var parseErr *IPParseError
	if err := w.Refresh(context.Background()); !errors.As(err, &parseErr) {
		t.Fatalf("Refresh error = %v, want *IPParseError", err)
	}
	if got := w.CurrentIP(); got != netip.MustParseAddr("1.2.3.4") {
		t.Errorf("CurrentIP = %v, want unchanged 1.2.3.4", got)
	}
	if w.HasChanged() {
		t.Error("failed refreshes must not look like a change")
	}
}

func TestParseIPv4(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "1.2.3.4", want: "1.2.3.4"},
		{input: "  198.51.100.1\r\n", want: "198.51.100.1"},
		{input: "\t10.0.0.1 ", want: "10.0.0.1"},
		{input: "2001:db8::1", wantErr: true},
		{input: "::ffff:1.2.3.4", wantErr: true},
		{input: "1.2.3", wantErr: true},
		{input: "1.2.3.256", wantErr: true},
		{input: "01.2.3.4", wantErr: true},
		{input: "", wantErr: true},
		{input: "1.2.3.4 5.6.7.8", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIPv4(tt.input)
			if tt.wantErr {
				var parseErr *IPParseError
				if !errors.As(err, &parseErr) {
					t.Fatalf("ParseIPv4(%q) error = %v, want *IPParseError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIPv4(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseIPv4(%q) = %v, want %s", tt.input, got, tt.want)
			}
		})
	}
}
