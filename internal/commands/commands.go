// Package commands implements the chat commands that steer the tracker.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"limitedwatch/internal/eventbus"
	"limitedwatch/internal/market"
	"limitedwatch/internal/poller"
	"limitedwatch/internal/tracker"
	"limitedwatch/internal/transport/telegram/router"
	logx "limitedwatch/pkg/logx"
	"limitedwatch/pkg/tgui"
)

// FeedCache is the part of the feed fetcher the commands touch.
type FeedCache interface {
	CacheAge() (time.Duration, bool)
	Invalidate()
}

// Loop is the part of the poller the commands touch.
type Loop interface {
	Status() poller.Status
	Wake()
}

type Deps struct {
	Tracker  *tracker.Tracker
	Settings *tracker.Settings
	Feed     FeedCache
	Loop     Loop
	Bus      eventbus.Bus
	Log      logx.Logger
}

// Registry returns the command table. /help is added by the router.
func Registry(d Deps) []router.Command {
	if d.Bus == nil {
		d.Bus = eventbus.New()
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	h := &handlers{Deps: d}
	return []router.Command{
		{
			Route:       "clear",
			Description: "delete every notification sent so far",
			Usage:       "/clear [--dry]",
			Access:      router.AccessOwnerOnly,
			Timeout:     2 * time.Minute,
			Handle:      h.clear,
		},
		{
			Route:       "set_robux",
			Aliases:     []string{"robux"},
			Description: "set the price limit",
			Usage:       "/set_robux <amount>",
			Access:      router.AccessOwnerOnly,
			Handle:      h.setRobux,
		},
		{
			Route:       "set_demand",
			Aliases:     []string{"demand"},
			Description: "set the desired demand tier",
			Usage:       "/set_demand <tier>",
			Access:      router.AccessOwnerOnly,
			Handle:      h.setDemand,
		},
		{
			Route:       "set_reduction",
			Aliases:     []string{"reduction"},
			Description: "set the minimum reduction percent",
			Usage:       "/set_reduction <percent>",
			Access:      router.AccessOwnerOnly,
			Handle:      h.setReduction,
		},
		{
			Route:       "status",
			Description: "show criteria and tracker state",
			Usage:       "/status",
			Handle:      h.status,
		},
		{
			Route:       "refresh",
			Description: "drop the cached item table and poll now",
			Usage:       "/refresh",
			Access:      router.AccessOwnerOnly,
			Handle:      h.refresh,
		},
	}
}

type handlers struct {
	Deps
}

func (h *handlers) clear(ctx context.Context, req *router.Request) error {
	if req.HasFlag("dry") {
		n := h.Tracker.Stats().Sent
		_, err := req.Reply(ctx, tgui.Esc(fmt.Sprintf("🧹 would delete %d messages", n)).String())
		return err
	}
	n, err := h.Tracker.ClearAll(ctx, req.Adapter)
	h.Bus.Publish(eventbus.Event{Type: eventbus.TypeCleared, Data: n})
	if err != nil {
		return &CommandError{Command: req.Command, Msg: fmt.Sprintf("attempted %d messages, some could not be deleted", n), Err: err}
	}
	if _, err := req.Reply(ctx, tgui.Esc(fmt.Sprintf("🧹 deleted %d messages", n)).String()); err != nil {
		return &CommandError{Command: req.Command, Msg: "reply failed", Err: err}
	}
	return nil
}

func (h *handlers) setRobux(ctx context.Context, req *router.Request) error {
	v, err := intArg(req)
	if err != nil {
		return err
	}
	next := h.Settings.Snapshot()
	next.PriceLimit = int64(v)
	if err := next.Validate(); err != nil {
		return &CommandError{Command: req.Command, Err: err}
	}
	crit := h.Settings.SetPriceLimit(int64(v))
	return h.confirm(ctx, req, crit, fmt.Sprintf("price limit set to %d Robux", v))
}

func (h *handlers) setDemand(ctx context.Context, req *router.Request) error {
	v, err := intArg(req)
	if err != nil {
		return err
	}
	crit := h.Settings.SetDesiredDemand(v)
	msg := fmt.Sprintf("desired demand set to %d", v)
	if !crit.DemandFilter {
		msg += " (demand filter is off, value is stored only)"
	}
	return h.confirm(ctx, req, crit, msg)
}

func (h *handlers) setReduction(ctx context.Context, req *router.Request) error {
	v, err := intArg(req)
	if err != nil {
		return err
	}
	crit := h.Settings.SetReductionThreshold(float64(v))
	return h.confirm(ctx, req, crit, fmt.Sprintf("reduction threshold set to %d%%", v))
}

// confirm announces the new criteria and replies to the author privately.
func (h *handlers) confirm(ctx context.Context, req *router.Request, crit market.Criteria, msg string) error {
	h.Bus.Publish(eventbus.Event{Type: eventbus.TypeCriteriaSet, Data: crit})
	req.Logger.Info("criteria updated",
		logx.Int64("price_limit", crit.PriceLimit),
		logx.Int("desired_demand", crit.DesiredDemand),
		logx.Float64("reduction_threshold", crit.ReductionThreshold),
	)
	if _, err := req.ReplyPrivate(ctx, tgui.Esc("✅ "+msg).String()); err != nil {
		return &CommandError{Command: req.Command, Msg: "private reply failed", Err: err}
	}
	return nil
}

func (h *handlers) status(ctx context.Context, req *router.Request) error {
	_, err := req.Reply(ctx, h.statusText())
	return err
}

func (h *handlers) statusText() string {
	crit := h.Settings.Snapshot()
	stats := h.Tracker.Stats()

	demand := strconv.Itoa(crit.DesiredDemand)
	if !crit.DemandFilter {
		demand += " (filter off)"
	}
	lines := []tgui.H{
		tgui.B("📊 Status"),
		tgui.Field("Price", fmt.Sprintf("%d < price ≤ %d", crit.MinPrice, crit.PriceLimit)),
		tgui.Field("Reduction", "≥ "+strconv.FormatFloat(crit.ReductionThreshold, 'f', -1, 64)+"%"),
		tgui.Field("Demand", demand),
		"",
		tgui.Field("Reported", strconv.Itoa(stats.Reported)),
		tgui.Field("Messages", strconv.Itoa(stats.Sent)),
	}
	if h.Feed != nil {
		age := "empty"
		if a, ok := h.Feed.CacheAge(); ok {
			age = a.Truncate(time.Second).String() + " old"
		}
		lines = append(lines, tgui.Field("Cache", age))
	}
	if h.Loop != nil {
		st := h.Loop.Status()
		lines = append(lines, tgui.Field("Loop", string(st.State)), tgui.Field("Iterations", strconv.FormatUint(st.Iterations, 10)))
		if !st.LastIteration.IsZero() {
			lines = append(lines, tgui.Field("Last poll", st.LastIteration.Format(time.TimeOnly)))
		}
		if st.LastError != "" {
			lines = append(lines, tgui.Field("Last error", tgui.TruncRunes(st.LastError, 300)))
		}
	}
	return tgui.JoinH("\n", lines...).String()
}

// Status renders the same summary /status replies with.
func Status(d Deps) string {
	return (&handlers{Deps: d}).statusText()
}

func (h *handlers) refresh(ctx context.Context, req *router.Request) error {
	if h.Feed != nil {
		h.Feed.Invalidate()
	}
	if h.Loop != nil {
		h.Loop.Wake()
	}
	_, err := req.Reply(ctx, tgui.Esc("🔄 cache dropped, polling now").String())
	return err
}

func intArg(req *router.Request) (int, error) {
	if len(req.Args) == 0 {
		return 0, usageErr(req.Command, "missing value")
	}
	raw := strings.TrimSpace(req.Args[0])
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, usageErr(req.Command, fmt.Sprintf("%q is not an integer", raw))
	}
	return v, nil
}
