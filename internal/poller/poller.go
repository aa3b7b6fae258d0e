// Package poller runs the tracking loop: resolve the channel, fetch the
// catalog, filter it, announce new items, sleep, repeat.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"limitedwatch/internal/alert"
	"limitedwatch/internal/eventbus"
	"limitedwatch/internal/feed"
	"limitedwatch/internal/market"
	"limitedwatch/internal/metrics"
	"limitedwatch/internal/tracker"
	kit "limitedwatch/internal/transport"
	logx "limitedwatch/pkg/logx"
)

type State string

const (
	StateIdle      State = "IDLE"
	StateFetching  State = "FETCHING"
	StateFiltering State = "FILTERING"
	StateNotifying State = "NOTIFYING"
	StateSleeping  State = "SLEEPING"
)

// Source yields the current catalog snapshot.
type Source interface {
	Catalog(ctx context.Context) (*feed.Catalog, error)
}

// Outbound is the slice of the chat transport the loop needs.
type Outbound interface {
	ResolveChannel(ctx context.Context, name string) (kit.ChatTarget, error)
	SendCard(ctx context.Context, to kit.ChatTarget, card kit.Card) (kit.MessageRef, error)
}

// ChannelNotFoundError means the announcement channel could not be
// resolved by name.
type ChannelNotFoundError struct {
	Name string
	Err  error
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("channel %q not found: %v", e.Name, e.Err)
}

func (e *ChannelNotFoundError) Unwrap() error { return e.Err }

// Config holds the channel name and the per-outcome delays.
type Config struct {
	Channel             string
	OKDelay             time.Duration
	ErrorDelay          time.Duration
	MissingChannelDelay time.Duration
}

// Status is a point-in-time view of the loop.
type Status struct {
	State         State
	Iterations    uint64
	LastIteration time.Time
	LastError     string
	LastMatched   int
	Printed       int
	Sent          uint64
	Failed        uint64
}

type Poller struct {
	src      Source
	out      Outbound
	tracker  *tracker.Tracker
	settings *tracker.Settings
	bus      eventbus.Bus
	log      logx.Logger

	cfgMu sync.RWMutex
	cfg   Config

	mu      sync.Mutex
	status  Status
	printed map[string]struct{}

	wake chan struct{}
}

func New(cfg Config, src Source, out Outbound, tr *tracker.Tracker, settings *tracker.Settings, bus eventbus.Bus, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	return &Poller{
		src:      src,
		out:      out,
		tracker:  tr,
		settings: settings,
		bus:      bus,
		log:      log.With(logx.String("comp", "poller")),
		cfg:      cfg,
		status:   Status{State: StateIdle},
		printed:  map[string]struct{}{},
		wake:     make(chan struct{}, 1),
	}
}

// SetConfig swaps channel and delays; it takes effect next iteration.
func (p *Poller) SetConfig(cfg Config) {
	p.cfgMu.Lock()
	p.cfg = cfg
	p.cfgMu.Unlock()
}

func (p *Poller) config() Config {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.cfg
}

// Wake cuts the current sleep short.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Printed = len(p.printed)
	return s
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.status.State = s
	p.mu.Unlock()
}

// Run loops until ctx is canceled. It always returns nil.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("tracking loop started", logx.String("channel", p.config().Channel))
	defer p.log.Info("tracking loop stopped")

	for ctx.Err() == nil {
		err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		delay := p.delayFor(err)

		p.setState(StateSleeping)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-p.wake:
			t.Stop()
		case <-t.C:
		}
	}
	return nil
}

func (p *Poller) delayFor(err error) time.Duration {
	cfg := p.config()
	var cnf *ChannelNotFoundError
	switch {
	case err == nil:
		return cfg.OKDelay
	case errors.As(err, &cnf):
		return cfg.MissingChannelDelay
	default:
		return cfg.ErrorDelay
	}
}

// RunOnce performs one iteration and reports its error, if any.
func (p *Poller) RunOnce(ctx context.Context) error {
	res, err := p.iterate(ctx)
	if ctx.Err() != nil {
		return err
	}

	result := "ok"
	var cnf *ChannelNotFoundError
	switch {
	case errors.As(err, &cnf):
		result = "no_channel"
		p.log.Warn("announcement channel not found", logx.String("channel", cnf.Name), logx.Err(err))
	case err != nil:
		result = "error"
		p.log.Error("iteration failed", logx.Err(err))
	}
	metrics.Iterations.WithLabelValues(result).Inc()

	p.mu.Lock()
	p.status.Iterations++
	p.status.LastIteration = time.Now()
	p.status.LastMatched = res.Matched
	p.status.Sent += uint64(res.Sent)
	p.status.Failed += uint64(res.Failed)
	p.status.LastError = ""
	if err != nil {
		p.status.LastError = err.Error()
		res.Err = err.Error()
	}
	p.mu.Unlock()

	p.bus.Publish(eventbus.Event{Type: eventbus.TypeIterationDone, Data: res})
	return err
}

func (p *Poller) iterate(ctx context.Context) (eventbus.IterationDone, error) {
	var res eventbus.IterationDone
	cfg := p.config()

	target, err := p.out.ResolveChannel(ctx, cfg.Channel)
	if err != nil {
		return res, &ChannelNotFoundError{Name: cfg.Channel, Err: err}
	}

	p.setState(StateFetching)
	cat, err := p.src.Catalog(ctx)
	if err != nil {
		return res, err
	}

	p.setState(StateFiltering)
	matches := market.SelectCandidates(cat, p.settings.Snapshot())
	res.Matched = len(matches)
	metrics.Candidates.Set(float64(len(matches)))
	p.printNew(matches)

	fresh := p.tracker.MarkAndFilterNew(matches)
	res.New = len(fresh)
	if len(fresh) == 0 {
		return res, nil
	}

	p.setState(StateNotifying)
	var errs []error
	for _, c := range fresh {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ref, err := p.out.SendCard(ctx, target, alert.Card(c))
		if err != nil {
			res.Failed++
			metrics.Notifications.WithLabelValues("failed").Inc()
			p.log.Warn("notification failed", logx.String("item_id", c.ID), logx.String("name", c.Name), logx.Err(err))
			p.bus.Publish(eventbus.Event{Type: eventbus.TypeSendFailed, Data: eventbus.ItemFound{ID: c.ID, Name: c.Name, Price: int64(c.Price), Reduction: c.Reduction}})
			errs = append(errs, fmt.Errorf("item %s: %w", c.ID, err))
			continue
		}
		p.tracker.RecordSent(ref)
		res.Sent++
		metrics.Notifications.WithLabelValues("sent").Inc()
		p.bus.Publish(eventbus.Event{Type: eventbus.TypeItemSent, Data: eventbus.ItemFound{ID: c.ID, Name: c.Name, Price: int64(c.Price), Reduction: c.Reduction}})
	}
	return res, errors.Join(errs...)
}

// printNew logs one line per match not seen by this process before.
func (p *Poller) printNew(matches []market.Candidate) {
	p.mu.Lock()
	var fresh []market.Candidate
	for _, c := range matches {
		if _, ok := p.printed[c.ID]; ok {
			continue
		}
		p.printed[c.ID] = struct{}{}
		fresh = append(fresh, c)
	}
	p.mu.Unlock()

	for _, c := range fresh {
		p.log.Info("item found",
			logx.String("item_id", c.ID),
			logx.String("name", c.Name),
			logx.Float64("price", c.Price),
			logx.Float64("rap", c.RAP),
			logx.Float64("reduction", c.Reduction),
		)
		p.bus.Publish(eventbus.Event{Type: eventbus.TypeItemFound, Data: eventbus.ItemFound{ID: c.ID, Name: c.Name, Price: int64(c.Price), Reduction: c.Reduction}})
	}
}
