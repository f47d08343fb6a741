package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/evanofslack/cloudflare-ddns/internal/config"
	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
	"github.com/evanofslack/cloudflare-ddns/internal/provider"
	"github.com/evanofslack/cloudflare-ddns/internal/zone"
)

var testZone = zone.MustParse("023e105f4ecef8ad9ca31a8372d0c353")

func newTestProvider(t *testing.T, handler http.HandlerFunc) *CloudflareProvider {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	p, err := New(config.DNS{Token: "test-token", APIURL: ts.URL}, ts.Client(), metrics.New(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(config.DNS{}, nil, metrics.New(false)); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestListRecordsPaginates(t *testing.T) {
	pages := map[string]string{
		"1": `{"id":"rec-1","type":"A","name":"home.example.com","content":"1.2.3.4","ttl":300,"locked":false,"proxied":false}`,
		"2": `{"id":"rec-2","type":"CNAME","name":"www.example.com","content":"home.example.com","ttl":1,"locked":true}`,
	}
	var (
		mu        sync.Mutex
		requested []string
	)

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		wantPath := fmt.Sprintf("/zones/%s/dns_records", testZone)
		if r.Method != http.MethodGet || r.URL.Path != wantPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		page := r.URL.Query().Get("page")
		mu.Lock()
		requested = append(requested, page)
		mu.Unlock()
		fmt.Fprintf(w, `{"success":true,"errors":[],"messages":[],"result":[%s],"result_info":{"page":%s,"per_page":1,"count":1,"total_count":2,"total_pages":2}}`, pages[page], page)
	})

	records, err := p.ListRecords(context.Background(), testZone)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(requested, ",") != "1,2" {
		t.Errorf("requested pages = %v, want [1 2]", requested)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.ID != "rec-1" || first.Type != "A" || first.Content != "1.2.3.4" || first.TTL != 300 || first.Locked {
		t.Errorf("first record = %+v", first)
	}
	if first.Proxied == nil || *first.Proxied {
		t.Errorf("first record proxied = %v, want false", first.Proxied)
	}
	if second := records[1]; second.Type != "CNAME" || !second.Locked {
		t.Errorf("second record = %+v", second)
	}
}

func TestListRecordsError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"success":false,"errors":[{"code":9109,"message":"Unauthorized to access requested resource"}],"messages":[],"result":null}`)
	})

	if _, err := p.ListRecords(context.Background(), testZone); err == nil {
		t.Fatal("expected error on forbidden response")
	}
}

func TestUpdateRecord(t *testing.T) {
	proxied := false
	record := provider.Record{
		ID:      "rec-1",
		Name:    "home.example.com",
		Type:    "A",
		Content: "4.4.4.4",
		TTL:     300,
		Proxied: &proxied,
	}

	tests := []struct {
		name    string
		record  provider.Record
		status  int
		wantErr bool
		wantHit bool
	}{
		{name: "success", record: record, status: http.StatusOK, wantHit: true},
		{name: "rejected", record: record, status: http.StatusBadRequest, wantErr: true, wantHit: true},
		{name: "missing id", record: provider.Record{Name: "home.example.com", Type: "A"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hit atomic.Bool
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				hit.Store(true)
				wantPath := fmt.Sprintf("/zones/%s/dns_records/%s", testZone, tt.record.ID)
				if r.Method != http.MethodPatch || r.URL.Path != wantPath {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}

				var body map[string]any
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode body: %v", err)
				}
				if body["content"] != tt.record.Content || body["name"] != tt.record.Name || body["type"] != tt.record.Type {
					t.Errorf("body = %v", body)
				}

				w.WriteHeader(tt.status)
				if tt.status != http.StatusOK {
					fmt.Fprint(w, `{"success":false,"errors":[{"code":1004,"message":"DNS Validation Error"}],"messages":[],"result":null}`)
					return
				}
				fmt.Fprint(w, `{"success":true,"errors":[],"messages":[],"result":{"id":"rec-1","type":"A","name":"home.example.com","content":"4.4.4.4","ttl":300}}`)
			})

			err := p.UpdateRecord(context.Background(), testZone, tt.record)
			if (err != nil) != tt.wantErr {
				t.Errorf("UpdateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if hit.Load() != tt.wantHit {
				t.Errorf("server hit = %v, want %v", hit.Load(), tt.wantHit)
			}
		})
	}
}
