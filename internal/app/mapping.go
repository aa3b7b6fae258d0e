package app

import (
	"limitedwatch/internal/config"
	"limitedwatch/internal/digest"
	"limitedwatch/internal/poller"
	"limitedwatch/internal/storage"
	logx "limitedwatch/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapPoller(cfg *config.Config) (poller.Config, error) {
	ts, err := cfg.TrackerSettings()
	if err != nil {
		return poller.Config{}, err
	}
	return poller.Config{
		Channel:             ts.Channel,
		OKDelay:             ts.OKDelay,
		ErrorDelay:          ts.ErrorDelay,
		MissingChannelDelay: ts.MissingChannelDelay,
	}, nil
}

func mapDigest(cfg *config.Config) digest.Config {
	chatID, _ := cfg.GroupLogChatID()
	return digest.Config{
		Enabled:  cfg.Digest.Enabled,
		Schedule: cfg.DigestSchedule(),
		Timezone: cfg.Digest.Timezone,
		ChatID:   chatID,
		ThreadID: cfg.Logging.Telegram.ThreadID,
	}
}

// mapStorage reports enabled=false when the section is absent.
func mapStorage(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	sc := storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path, BusyTimeout: busy}
	if sc.Driver == "" {
		sc.Driver = "file"
	}
	return sc, sc.Driver != "none", nil
}
