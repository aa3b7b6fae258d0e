package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"limitedwatch/internal/market"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

const yamlConfig = `
telegram:
  token: file-token
  owner_user_ids: [1, 2]
  group_log: "-100123"
logging:
  level: debug
  console: true
feed:
  cache_ttl: 2m
tracker:
  channel: deals
  criteria:
    price_limit: 7500
    min_price: 0
  error_delay: 5s
`

func TestParseYAMLWithDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "")
	p := writeFile(t, t.TempDir(), "config.yaml", yamlConfig)

	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	crit := cfg.Criteria()
	want := market.Criteria{PriceLimit: 7500, DesiredDemand: 2, ReductionThreshold: 10, MinPrice: 0}
	if crit != want {
		t.Fatalf("criteria = %+v, want %+v", crit, want)
	}

	ts, err := cfg.TrackerSettings()
	if err != nil {
		t.Fatalf("TrackerSettings: %v", err)
	}
	if ts.Channel != "deals" || ts.OKDelay != time.Second || ts.ErrorDelay != 5*time.Second || ts.MissingChannelDelay != 10*time.Second {
		t.Fatalf("unexpected tracker settings %+v", ts)
	}

	fc, err := cfg.FeedConfig()
	if err != nil {
		t.Fatalf("FeedConfig: %v", err)
	}
	if fc.CacheTTL != 2*time.Minute || fc.Timeout != 10*time.Second {
		t.Fatalf("unexpected feed config %+v", fc)
	}
	if id, _ := cfg.GroupLogChatID(); id != -100123 {
		t.Fatalf("group log = %d", id)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":"x"},"pprof":{}}`)
	if _, err := NewConfigManager(p).Parse(); err == nil || !strings.Contains(err.Error(), "pprof") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":"x"}} {}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv(TokenEnv, "env-token")
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":""}}`)
	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(TokenEnv, "123:abc")
	p := filepath.Join(t.TempDir(), "config.json")

	if _, err := NewConfigManager(p).Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("required config: err = %v, want not-exist", err)
	}

	m := NewConfigManager(p)
	m.SetOptional(true)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || m.Get() != cfg {
		t.Fatalf("token = %q, committed = %v", cfg.Telegram.Token, m.Get() == cfg)
	}
	ts, err := cfg.TrackerSettings()
	if err != nil {
		t.Fatalf("TrackerSettings: %v", err)
	}
	if ts.Channel != DefaultChannel || ts.OKDelay != DefaultOKDelay {
		t.Fatalf("defaults not applied: %+v", ts)
	}
}

func TestWarnings(t *testing.T) {
	var cfg Config
	got := strings.Join(cfg.Warnings(), "\n")
	if !strings.Contains(got, "@limiteds") || !strings.Contains(got, "owner_user_ids") {
		t.Fatalf("unexpected warnings %q", got)
	}

	cfg.Tracker.Channel = "-1001234"
	cfg.Telegram.OwnerUserIDs = []int64{1}
	if w := cfg.Warnings(); len(w) != 0 {
		t.Fatalf("explicit config still warns: %q", w)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv(TokenEnv, "")
	os.Unsetenv(TokenEnv)
	dir := t.TempDir()
	p := writeFile(t, dir, ".env", "BOT_TOKEN=dotenv-token\n")
	if err := LoadDotEnv(p, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(TokenEnv); got != "dotenv-token" {
		t.Fatalf("BOT_TOKEN = %q", got)
	}
}

func TestValidate(t *testing.T) {
	neg := int64(-1)
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "no token", cfg: Config{}, want: "token missing"},
		{name: "bad duration", cfg: Config{Telegram: TelegramConfig{Token: "x"}, Tracker: TrackerConfig{OKDelay: "soon"}}, want: "tracker.ok_delay"},
		{name: "bad group", cfg: Config{Telegram: TelegramConfig{Token: "x", GroupLog: "@logs"}}, want: "telegram.group_log"},
		{name: "negative limit", cfg: Config{Telegram: TelegramConfig{Token: "x"}, Tracker: TrackerConfig{Criteria: CriteriaConfig{PriceLimit: &neg}}}, want: "price limit"},
		{name: "bad cron", cfg: Config{Telegram: TelegramConfig{Token: "x"}, Digest: DigestConfig{Enabled: true, Schedule: "every day"}}, want: "digest.schedule"},
		{name: "bad driver", cfg: Config{Telegram: TelegramConfig{Token: "x"}, Storage: &StorageConfig{Driver: "redis"}}, want: "storage.driver"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want substring %q", err, tc.want)
			}
		})
	}
	if err := (&Config{}).Validate(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	limit := int64(100)
	a := &Config{Telegram: TelegramConfig{Token: "secret-a"}}
	b := &Config{Telegram: TelegramConfig{Token: "secret-b"}, Tracker: TrackerConfig{Criteria: CriteriaConfig{PriceLimit: &limit}}}

	changed, _ := SummarizeConfigChange(a, b)
	if strings.Join(changed, ",") != "telegram.token,tracker.criteria" {
		t.Fatalf("changed = %v", changed)
	}
	if !CriteriaChanged(a, b) || CriteriaChanged(b, b) {
		t.Fatalf("CriteriaChanged misreports")
	}
}

func TestReloadDedupesAndValidates(t *testing.T) {
	t.Setenv(TokenEnv, "")
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"telegram":{"token":"x"}}`)
	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if m.reload(context.Background()) {
		t.Fatalf("unchanged content must not publish")
	}

	m.SetValidator(func(ctx context.Context, cfg *Config) error { return cfg.Validate() })
	writeFile(t, dir, "config.json", `{"telegram":{"token":""}}`)
	if m.reload(context.Background()) {
		t.Fatalf("invalid config must not publish")
	}

	writeFile(t, dir, "config.json", `{"telegram":{"token":"y"}}`)
	if !m.reload(context.Background()) {
		t.Fatalf("changed config must publish")
	}
	if got := <-ch; got.Telegram.Token != "y" || m.Get().Telegram.Token != "y" {
		t.Fatalf("unexpected published config %+v", got.Telegram)
	}
}

func TestWatchPublishesOnWrite(t *testing.T) {
	t.Setenv(TokenEnv, "")
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"telegram":{"token":"x"}}`)
	m := NewConfigManager(p)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-ch:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("unexpected config %+v", cfg.Logging)
			}
			return
		case <-tick.C:
			// Rewrite until the watcher is up and sees it.
			writeFile(t, dir, "config.json", `{"telegram":{"token":"x"},"logging":{"level":"debug"}}`)
		case <-deadline:
			t.Fatalf("no config published")
		}
	}
}
