package config

import (
	"reflect"
	"strings"

	logx "limitedwatch/pkg/logx"
)

// SummarizeConfigChange lists the changed top-level sections and returns
// log fields describing the new values. Secrets are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)

	o, n := oldCfg.Telegram, newCfg.Telegram
	if o.PollTimeout != n.PollTimeout || o.GroupLog != n.GroupLog || o.SendRatePerSec != n.SendRatePerSec ||
		!reflect.DeepEqual(o.OwnerUserIDs, n.OwnerUserIDs) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", n.PollTimeout),
			logx.Int("telegram.owner_count", len(n.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(n.GroupLog) != ""),
		)
	}
	if oldCfg.Telegram.Token != newCfg.Telegram.Token {
		changed = append(changed, "telegram.token")
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Feed != newCfg.Feed {
		changed = append(changed, "feed")
		attrs = append(attrs,
			logx.String("feed.url", newCfg.Feed.URL),
			logx.String("feed.cache_ttl", newCfg.Feed.CacheTTL),
			logx.String("feed.timeout", newCfg.Feed.Timeout),
		)
	}

	ot, nt := oldCfg.Tracker, newCfg.Tracker
	if ot.Channel != nt.Channel || ot.OKDelay != nt.OKDelay || ot.ErrorDelay != nt.ErrorDelay ||
		ot.MissingChannelDelay != nt.MissingChannelDelay {
		changed = append(changed, "tracker")
		attrs = append(attrs, logx.String("tracker.channel", nt.Channel))
	}
	if CriteriaChanged(oldCfg, newCfg) {
		changed = append(changed, "tracker.criteria")
		c := newCfg.Criteria()
		attrs = append(attrs,
			logx.Int64("criteria.price_limit", c.PriceLimit),
			logx.Int("criteria.desired_demand", c.DesiredDemand),
			logx.Float64("criteria.reduction_threshold", c.ReductionThreshold),
		)
	}

	if oldCfg.Keepalive != newCfg.Keepalive {
		changed = append(changed, "keepalive")
		attrs = append(attrs, logx.Bool("keepalive.enabled", newCfg.Keepalive.Enabled), logx.String("keepalive.addr", newCfg.Keepalive.Addr))
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	if oldCfg.Digest != newCfg.Digest {
		changed = append(changed, "digest")
		attrs = append(attrs, logx.Bool("digest.enabled", newCfg.Digest.Enabled), logx.String("digest.schedule", newCfg.Digest.Schedule))
	}
	return changed, attrs
}

// CriteriaChanged reports whether the criteria section differs. Live
// criteria set by chat commands are only replaced when it does.
func CriteriaChanged(oldCfg, newCfg *Config) bool {
	if oldCfg == nil || newCfg == nil {
		return oldCfg != newCfg
	}
	return !reflect.DeepEqual(oldCfg.Tracker.Criteria, newCfg.Tracker.Criteria)
}
