package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"limitedwatch/internal/metrics"
	logx "limitedwatch/pkg/logx"
)

const (
	DefaultURL      = "https://www.rolimons.com/itemtable"
	DefaultMarker   = "var item_details = "
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 300 * time.Second
)

type Config struct {
	URL       string
	Marker    string
	Timeout   time.Duration
	CacheTTL  time.Duration
	UserAgent string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.URL) == "" {
		c.URL = DefaultURL
	}
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}

// Fetcher downloads and caches the item table. Concurrent callers share one
// download.
type Fetcher struct {
	client *resty.Client
	log    logx.Logger
	now    func() time.Time

	// fetchMu serializes downloads and client changes. It is taken before
	// mu, and mu is never held across the network.
	fetchMu sync.Mutex

	mu   sync.Mutex
	cfg  Config
	snap *Catalog
}

func New(cfg Config, log logx.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Fetcher{cfg: cfg, client: client, log: log, now: time.Now}
}

// Catalog returns the cached snapshot while it is younger than the cache
// window, otherwise downloads and parses a fresh one. A failed refresh keeps
// the previous snapshot for later calls but still returns the error.
func (f *Fetcher) Catalog(ctx context.Context) (*Catalog, error) {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()

	f.mu.Lock()
	cfg, snap := f.cfg, f.snap
	f.mu.Unlock()
	if snap != nil && f.now().Sub(snap.FetchedAt) < cfg.CacheTTL {
		metrics.FeedFetches.WithLabelValues("cached").Inc()
		return snap, nil
	}

	body, err := f.download(ctx, cfg.URL)
	if err != nil {
		metrics.FeedFetches.WithLabelValues("fetch_error").Inc()
		return nil, err
	}

	table, err := extractTable(body, cfg.Marker)
	if err != nil {
		metrics.FeedFetches.WithLabelValues("parse_error").Inc()
		return nil, err
	}
	items, err := decodeCatalog(table)
	if err != nil {
		metrics.FeedFetches.WithLabelValues("parse_error").Inc()
		return nil, err
	}

	snap = &Catalog{Items: items, FetchedAt: f.now()}
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
	metrics.FeedFetches.WithLabelValues("ok").Inc()
	metrics.CatalogItems.Set(float64(len(items)))
	f.log.Debug("catalog refreshed", logx.Int("items", len(items)), logx.Int("bytes", len(body)))
	return snap, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(url)
	metrics.FeedFetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// CacheAge reports how old the current snapshot is. ok is false when there
// is no snapshot yet.
func (f *Fetcher) CacheAge() (age time.Duration, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return 0, false
	}
	return f.now().Sub(f.snap.FetchedAt), true
}

// Invalidate drops the snapshot so the next Catalog call downloads.
func (f *Fetcher) Invalidate() {
	f.mu.Lock()
	f.snap = nil
	f.mu.Unlock()
}

// Reconfigure applies a new config. A changed URL or marker drops the
// snapshot.
func (f *Fetcher) Reconfigure(cfg Config) {
	cfg = cfg.withDefaults()
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()
	f.mu.Lock()
	if cfg.URL != f.cfg.URL || cfg.Marker != f.cfg.Marker {
		f.snap = nil
	}
	f.cfg = cfg
	f.mu.Unlock()
	f.client.SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		f.client.SetHeader("User-Agent", cfg.UserAgent)
	}
}
