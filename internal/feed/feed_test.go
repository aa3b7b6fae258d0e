package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	logx "limitedwatch/pkg/logx"
)

// record builds a 25-position upstream array with the read positions set.
func record(name string, price, rap, demand, projected, thumb string) string {
	f := make([]string, MinRecordLen)
	for i := range f {
		f[i] = "-1"
	}
	f[PosName] = fmt.Sprintf("%q", name)
	f[PosPrice] = price
	f[PosRAP] = rap
	f[PosDemand] = demand
	f[PosTrend] = "2"
	f[PosProjected] = projected
	f[PosThumbnail] = thumb
	return "[" + strings.Join(f, ",") + "]"
}

func page(table string) string {
	return `<html><head><script>var other = {"a":1};</script>` +
		`<script>var item_details = ` + table + `; var x = 1;</script></head><body></body></html>`
}

func newTestFetcher(t *testing.T, h http.HandlerFunc) (*Fetcher, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, Timeout: 2 * time.Second}, logx.Nop()), &hits
}

func TestCatalogParsesInUpstreamOrder(t *testing.T) {
	table := `{"30":` + record("Third", "800", "1000", `"High"`, "null", `"https://img/3"`) +
		`,"10":` + record("First {curly}", "null", "null", "null", "1", "null") +
		`,"20":` + record("Second \"q\"", "150.5", "200", "3", "null", `"https://img/2"`) + `}`
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page(table)))
	})

	cat, err := f.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if cat.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", cat.Len())
	}
	ids := []string{cat.Items[0].ID, cat.Items[1].ID, cat.Items[2].ID}
	if strings.Join(ids, ",") != "30,10,20" {
		t.Fatalf("order not preserved: %v", ids)
	}

	first := cat.Items[0]
	if first.Name != "Third" || *first.Price != 800 || *first.RAP != 1000 || !first.HasDemand() || first.IsProjected() {
		t.Fatalf("unexpected record: %+v", first)
	}
	if first.Thumbnail != "https://img/3" || len(first.Raw) != MinRecordLen {
		t.Fatalf("thumbnail/raw not kept: %+v", first)
	}
	second := cat.Items[1]
	if second.Price != nil || second.RAP != nil || second.HasDemand() || !second.IsProjected() {
		t.Fatalf("nulls not honoured: %+v", second)
	}
	if cat.Items[2].Name != `Second "q"` {
		t.Fatalf("escaped name mangled: %q", cat.Items[2].Name)
	}
}

func TestCatalogCacheAvoidsSecondRequest(t *testing.T) {
	table := `{"1":` + record("A", "200", "400", "1", "null", "null") + `}`
	f, hits := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page(table)))
	})

	a, err := f.Catalog(context.Background())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := f.Catalog(context.Background())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a != b || hits.Load() != 1 {
		t.Fatalf("expected cached snapshot and 1 request, got same=%v hits=%d", a == b, hits.Load())
	}
	if age, ok := f.CacheAge(); !ok || age < 0 {
		t.Fatalf("unexpected cache age %v %v", age, ok)
	}

	f.Invalidate()
	if _, err := f.Catalog(context.Background()); err != nil {
		t.Fatalf("after invalidate: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected refetch after invalidate, hits=%d", hits.Load())
	}
}

func TestCatalogRefetchesAfterTTL(t *testing.T) {
	table := `{"1":` + record("A", "200", "400", "1", "null", "null") + `}`
	f, hits := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page(table)))
	})
	now := time.Unix(1_700_000_000, 0)
	f.now = func() time.Time { return now }

	if _, err := f.Catalog(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}
	now = now.Add(DefaultCacheTTL - time.Second)
	_, _ = f.Catalog(context.Background())
	if hits.Load() != 1 {
		t.Fatalf("expected cache hit inside ttl, hits=%d", hits.Load())
	}
	now = now.Add(time.Second)
	_, _ = f.Catalog(context.Background())
	if hits.Load() != 2 {
		t.Fatalf("expected refetch at ttl, hits=%d", hits.Load())
	}
}

func TestCatalogErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantFetch bool
	}{
		{name: "server error", status: http.StatusBadGateway, body: "oops", wantFetch: true},
		{name: "missing marker", status: http.StatusOK, body: "<html><script>var nothing = {};</script></html>"},
		{name: "unbalanced", status: http.StatusOK, body: `var item_details = {"1": [1,2`},
		{name: "invalid json", status: http.StatusOK, body: `var item_details = {"1": nope};`},
		{name: "short record", status: http.StatusOK, body: `var item_details = {"1": ["x", 1, 2]};`},
		{name: "name not string", status: http.StatusOK, body: `var item_details = {"1": ` + strings.Replace(record("x", "1", "1", "1", "null", "null"), `"x"`, `5`, 1) + `};`},
		{name: "price not number", status: http.StatusOK, body: `var item_details = {"1": ` + record("x", `"cheap"`, "1", "1", "null", "null") + `};`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := f.Catalog(context.Background())
			if err == nil {
				t.Fatalf("expected error")
			}
			var fe *FetchError
			var pe *ParseError
			if tc.wantFetch {
				if !errors.As(err, &fe) || fe.StatusCode != tc.status {
					t.Fatalf("expected FetchError with status %d, got %v", tc.status, err)
				}
				return
			}
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %T %v", err, err)
			}
			if _, ok := f.CacheAge(); ok {
				t.Fatalf("failed parse must not populate cache")
			}
		})
	}
}

func TestCatalogTimeoutIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := New(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, logx.Nop())
	_, err := f.Catalog(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != 0 {
		t.Fatalf("expected transport FetchError, got %v", err)
	}
}

func TestCacheAgeDoesNotWaitForDownload(t *testing.T) {
	release := make(chan struct{})
	table := `{"1":` + record("A", "200", "400", "1", "null", "null") + `}`
	var served atomic.Int32
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if served.Add(1) > 1 {
			<-release
		}
		_, _ = w.Write([]byte(page(table)))
	})
	if _, err := f.Catalog(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}
	f.Invalidate()

	done := make(chan error, 1)
	go func() {
		_, err := f.Catalog(context.Background())
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	ages := make(chan bool, 1)
	go func() {
		_, ok := f.CacheAge()
		ages <- ok
	}()
	select {
	case ok := <-ages:
		if ok {
			t.Fatalf("invalidated snapshot still reported")
		}
	case <-time.After(time.Second):
		t.Fatalf("CacheAge blocked behind the download")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("second: %v", err)
	}
	if _, ok := f.CacheAge(); !ok {
		t.Fatalf("snapshot missing after refresh")
	}
}

func TestExtractTableRawBody(t *testing.T) {
	got, err := extractTable([]byte(`junk var item_details = {"a":"}{","b":{"c":1}}; tail};`), DefaultMarker)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if string(got) != `{"a":"}{","b":{"c":1}}` {
		t.Fatalf("unexpected extraction %s", got)
	}
}

func TestReconfigureDropsSnapshotOnURLChange(t *testing.T) {
	table := `{"1":` + record("A", "200", "400", "1", "null", "null") + `}`
	f, hits := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page(table)))
	})
	if _, err := f.Catalog(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}

	cfg := f.cfg
	cfg.CacheTTL = time.Hour
	f.Reconfigure(cfg)
	if _, ok := f.CacheAge(); !ok {
		t.Fatalf("unchanged url must keep the snapshot")
	}

	cfg.URL += "/itemtable"
	f.Reconfigure(cfg)
	if _, ok := f.CacheAge(); ok {
		t.Fatalf("changed url must drop the snapshot")
	}
	if _, err := f.Catalog(context.Background()); err != nil || hits.Load() != 2 {
		t.Fatalf("refetch after reconfigure: err=%v hits=%d", err, hits.Load())
	}
}
