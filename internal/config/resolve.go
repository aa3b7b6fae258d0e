package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"limitedwatch/internal/feed"
	"limitedwatch/internal/market"
)

// Resolved durations and defaults for the tracker.
type TrackerSettings struct {
	Channel             string
	OKDelay             time.Duration
	ErrorDelay          time.Duration
	MissingChannelDelay time.Duration
}

const (
	DefaultChannel             = "limiteds"
	DefaultOKDelay             = time.Second
	DefaultErrorDelay          = 3 * time.Second
	DefaultMissingChannelDelay = 10 * time.Second
	DefaultKeepaliveAddr       = ":8080"
	DefaultDigestSchedule      = "0 * * * *"
)

var ErrNoToken = errors.New("telegram token missing: set BOT_TOKEN or telegram.token")

func (c *Config) FeedConfig() (feed.Config, error) {
	timeout, err := ParseDurationOrDefault("feed.timeout", c.Feed.Timeout, feed.DefaultTimeout)
	if err != nil {
		return feed.Config{}, err
	}
	ttl, err := ParseDurationOrDefault("feed.cache_ttl", c.Feed.CacheTTL, feed.DefaultCacheTTL)
	if err != nil {
		return feed.Config{}, err
	}
	return feed.Config{
		URL:       strings.TrimSpace(c.Feed.URL),
		Marker:    c.Feed.Marker,
		Timeout:   timeout,
		CacheTTL:  ttl,
		UserAgent: strings.TrimSpace(c.Feed.UserAgent),
	}, nil
}

func (c *Config) TrackerSettings() (TrackerSettings, error) {
	ok, err := ParseDurationOrDefault("tracker.ok_delay", c.Tracker.OKDelay, DefaultOKDelay)
	if err != nil {
		return TrackerSettings{}, err
	}
	bad, err := ParseDurationOrDefault("tracker.error_delay", c.Tracker.ErrorDelay, DefaultErrorDelay)
	if err != nil {
		return TrackerSettings{}, err
	}
	missing, err := ParseDurationOrDefault("tracker.missing_channel_delay", c.Tracker.MissingChannelDelay, DefaultMissingChannelDelay)
	if err != nil {
		return TrackerSettings{}, err
	}
	ch := strings.TrimSpace(c.Tracker.Channel)
	if ch == "" {
		ch = DefaultChannel
	}
	return TrackerSettings{Channel: ch, OKDelay: ok, ErrorDelay: bad, MissingChannelDelay: missing}, nil
}

// Criteria returns the startup criteria with defaults filled in.
func (c *Config) Criteria() market.Criteria {
	out := market.DefaultCriteria()
	cc := c.Tracker.Criteria
	if cc.PriceLimit != nil {
		out.PriceLimit = *cc.PriceLimit
	}
	if cc.DesiredDemand != nil {
		out.DesiredDemand = *cc.DesiredDemand
	}
	if cc.ReductionThreshold != nil {
		out.ReductionThreshold = *cc.ReductionThreshold
	}
	if cc.MinPrice != nil {
		out.MinPrice = *cc.MinPrice
	}
	out.DemandFilter = cc.DemandFilter
	return out
}

func (c *Config) PollTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
}

// GroupLogChatID parses telegram.group_log; 0 when unset.
func (c *Config) GroupLogChatID() (int64, error) {
	s := strings.TrimSpace(c.Telegram.GroupLog)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.group_log: invalid chat id %q", s)
	}
	return id, nil
}

func (c *Config) KeepaliveAddr() string {
	if a := strings.TrimSpace(c.Keepalive.Addr); a != "" {
		return a
	}
	return DefaultKeepaliveAddr
}

func (c *Config) DigestSchedule() string {
	if s := strings.TrimSpace(c.Digest.Schedule); s != "" {
		return s
	}
	return DefaultDigestSchedule
}

// Warnings lists settings that are valid but probably not what the
// operator wants.
func (c *Config) Warnings() []string {
	var out []string
	if strings.TrimSpace(c.Tracker.Channel) == "" {
		out = append(out, fmt.Sprintf("tracker.channel not set; posting to the public handle @%s, which this bot may not control", DefaultChannel))
	}
	if len(c.Telegram.OwnerUserIDs) == 0 {
		out = append(out, "telegram.owner_user_ids is empty; anyone can change criteria and clear messages")
	}
	return out
}

// Validate checks everything that can be checked without network access.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, ErrNoToken)
	}
	if _, err := c.PollTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GroupLogChatID(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.FeedConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.TrackerSettings(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Criteria().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracker.criteria: %w", err))
	}
	if c.Digest.Enabled {
		if _, err := cron.ParseStandard(c.DigestSchedule()); err != nil {
			errs = append(errs, fmt.Errorf("digest.schedule: %w", err))
		}
		if tz := strings.TrimSpace(c.Digest.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				errs = append(errs, fmt.Errorf("digest.timezone: %w", err))
			}
		}
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "file", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
