package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings ("500ms", "10s", "5m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Feed      FeedConfig      `json:"feed"`
	Tracker   TrackerConfig   `json:"tracker"`
	Keepalive KeepaliveConfig `json:"keepalive"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Digest    DigestConfig    `json:"digest"`
}

type TelegramConfig struct {
	// Token may be left empty when BOT_TOKEN is set (environment or .env).
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id receiving forwarded log lines and digests.
	GroupLog       string `json:"group_log"`
	PollTimeout    string `json:"poll_timeout"`
	SendRatePerSec int    `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// FeedConfig controls the upstream item table download.
//
// Defaults: url https://www.rolimons.com/itemtable, timeout 10s,
// cache_ttl 300s.
type FeedConfig struct {
	URL       string `json:"url,omitempty"`
	Marker    string `json:"marker,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
	CacheTTL  string `json:"cache_ttl,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// TrackerConfig controls the polling loop.
//
// Defaults: channel "limiteds", ok_delay 1s, error_delay 3s,
// missing_channel_delay 10s.
type TrackerConfig struct {
	Channel             string         `json:"channel,omitempty"`
	Criteria            CriteriaConfig `json:"criteria"`
	OKDelay             string         `json:"ok_delay,omitempty"`
	ErrorDelay          string         `json:"error_delay,omitempty"`
	MissingChannelDelay string         `json:"missing_channel_delay,omitempty"`
}

// CriteriaConfig seeds the filter at startup. Zero values take defaults
// (5000 / 2 / 10 / 100); pointers distinguish an explicit 0.
type CriteriaConfig struct {
	PriceLimit         *int64   `json:"price_limit,omitempty"`
	DesiredDemand      *int     `json:"desired_demand,omitempty"`
	ReductionThreshold *float64 `json:"reduction_threshold,omitempty"`
	MinPrice           *int64   `json:"min_price,omitempty"`
	DemandFilter       bool     `json:"demand_filter,omitempty"`
}

// KeepaliveConfig controls the small HTTP responder (/, /healthz, /metrics).
type KeepaliveConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"
	// Pprof exposes /debug/pprof on the same listener. Keep the address
	// private when enabling it.
	Pprof bool `json:"pprof,omitempty"`
}

// StorageConfig controls the operator audit log.
//
//	"storage": { "driver": "sqlite", "path": "./limitedwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// DigestConfig controls the periodic status digest sent to the log chat.
type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron spec, default "0 * * * *"
	Timezone string `json:"timezone,omitempty"`
}
