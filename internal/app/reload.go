package app

import (
	"context"
	"slices"
	"strings"

	"limitedwatch/internal/config"
	"limitedwatch/internal/eventbus"
	logx "limitedwatch/pkg/logx"
)

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Keep only the newest of a burst.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

// applyConfig pushes the live-reloadable parts of next into the running
// components. Criteria only change when the file's criteria section did,
// so values set by chat commands survive unrelated edits.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	if slices.Contains(sections, "storage") || slices.Contains(sections, "keepalive") || slices.Contains(sections, "telegram.token") {
		a.log.Warn("config change needs a restart to take effect", logx.String("changed", strings.Join(sections, ",")))
	}

	for _, w := range next.Warnings() {
		a.log.Warn(w)
	}

	chatID, _ := next.GroupLogChatID()
	a.logs.SetChatTarget(chatID, next.Logging.Telegram.ThreadID)
	a.logs.Apply(mapLogging(next))

	a.cmdm.SetOwners(next.Telegram.OwnerUserIDs)

	if fc, err := next.FeedConfig(); err == nil {
		a.feed.Reconfigure(fc)
	}
	if pc, err := mapPoller(next); err == nil {
		a.poller.SetConfig(pc)
	}
	if config.CriteriaChanged(prev, next) {
		crit := next.Criteria()
		a.settings.Replace(crit)
		a.bus.Publish(eventbus.Event{Type: eventbus.TypeCriteriaSet, Data: crit})
	}
	if err := a.digest.Apply(mapDigest(next)); err != nil {
		a.log.Warn("digest reschedule failed", logx.Err(err))
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigApplied, Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
