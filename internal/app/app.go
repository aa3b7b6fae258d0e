// Package app wires the tracker together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"limitedwatch/internal/commands"
	"limitedwatch/internal/config"
	"limitedwatch/internal/digest"
	"limitedwatch/internal/eventbus"
	"limitedwatch/internal/feed"
	"limitedwatch/internal/keepalive"
	"limitedwatch/internal/poller"
	rtsup "limitedwatch/internal/runtime/supervisor"
	"limitedwatch/internal/storage"
	"limitedwatch/internal/tracker"
	kit "limitedwatch/internal/transport"
	telegram "limitedwatch/internal/transport/telegram/adapter"
	"limitedwatch/internal/transport/telegram/router"
	logx "limitedwatch/pkg/logx"
	"limitedwatch/pkg/systemd"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter  kit.Adapter
	feed     *feed.Fetcher
	tracker  *tracker.Tracker
	settings *tracker.Settings
	poller   *poller.Poller
	cmdm     *router.CommandManager
	digest   *digest.Service
	http     *keepalive.Server

	updates chan kit.Update
}

// New loads the config through cfgm (after .env) and builds every
// component. Nothing runs until Start.
func New(cfgm *config.ConfigManager) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pollTimeout, err := cfg.PollTimeout()
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	return assemble(cfgm, cfg, ad)
}

func assemble(cfgm *config.ConfigManager, cfg *config.Config, ad kit.Adapter) (*App, error) {
	// Point the chat sink at its target before enabling it.
	logCfg := mapLogging(cfg)
	bootCfg := logCfg
	bootCfg.Chat.Enabled = false
	logs, root := logx.New(bootCfg, ad)
	if chatID, err := cfg.GroupLogChatID(); err == nil && chatID != 0 {
		logs.SetChatTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logs.Apply(logCfg)
	log := root.With(logx.String("comp", "app"))
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	var store storage.Store
	sc, enabled, err := mapStorage(cfg)
	if err != nil {
		return nil, err
	}
	if enabled {
		if store, err = storage.Open(sc, root); err != nil {
			return nil, err
		}
		log.Info("audit storage enabled", logx.String("driver", sc.Driver))
	}

	fc, err := cfg.FeedConfig()
	if err != nil {
		return nil, err
	}
	pc, err := mapPoller(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	fetcher := feed.New(fc, root.With(logx.String("comp", "feed")))
	tr := tracker.New()
	settings := tracker.NewSettings(cfg.Criteria())
	loop := poller.New(pc, fetcher, ad, tr, settings, bus, root)

	cmdm := router.NewCommandManager(root.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)
	cmdm.Use(commands.Audit(store, root.With(logx.String("comp", "audit"))))

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logs,
		bus:      bus,
		store:    store,
		adapter:  ad,
		feed:     fetcher,
		tracker:  tr,
		settings: settings,
		poller:   loop,
		cmdm:     cmdm,
		updates:  make(chan kit.Update, 256),
	}
	a.digest = digest.New(mapDigest(cfg), ad, a.statusText, root)
	if cfg.Keepalive.Enabled {
		a.http = keepalive.New(keepalive.Config{Addr: cfg.KeepaliveAddr(), Pprof: cfg.Keepalive.Pprof}, loop.Status, root)
	}
	return a, nil
}

func (a *App) deps() commands.Deps {
	return commands.Deps{
		Tracker:  a.tracker,
		Settings: a.settings,
		Feed:     a.feed,
		Loop:     a.poller,
		Bus:      a.bus,
		Log:      a.log,
	}
}

func (a *App) statusText() string { return commands.Status(a.deps()) }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return cfg.Validate() })

	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.cmdm.SetRegistry(run, commands.Registry(a.deps()))
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	a.sup.Go("poller", a.poller.Run)

	if err := a.digest.Start(run); err != nil {
		return err
	}
	if a.http != nil {
		// Keepalive failures (a busy port) are retried and never stop tracking.
		a.sup.GoRestart("keepalive", a.http.Run, rtsup.WithRestartBackoff(time.Second, time.Minute))
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return systemd.Watchdog(c, func() bool { return a.sup.Err() == nil })
	})
	if _, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	}

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()
	a.sup.Cancel()

	a.step(ctx, "digest", 2*time.Second, func(context.Context) error { a.digest.Stop(); return nil })
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by max and by the caller's deadline.
// A step that overruns is left behind and reported when it finishes.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	if max <= 0 {
		a.log.Warn("stop step skipped, no time left", logx.String("name", name))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		}()
	}
}
