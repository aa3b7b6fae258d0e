// Package digest posts a periodic tracker summary to the log chat.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	kit "limitedwatch/internal/transport"
	logx "limitedwatch/pkg/logx"
)

type Config struct {
	Enabled  bool
	Schedule string // cron spec or descriptor ("@hourly", "@every 30m")
	Timezone string // IANA TZ; empty means local
	ChatID   int64
	ThreadID int
}

// Sender delivers the rendered digest.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	c      *cron.Cron
	ctx    context.Context
	parser cron.Parser

	send   Sender
	render func() string
	log    logx.Logger
}

func New(cfg Config, send Sender, render func() string, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		send:   send,
		render: render,
		log:    log.With(logx.String("comp", "digest")),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start schedules the digest. A disabled digest or one without a target
// chat is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.cfg.ChatID == 0 {
		s.log.Warn("digest enabled but telegram.group_log is unset; not scheduling")
		return nil
	}

	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("digest timezone %q: %w", tz, err)
		}
		loc = l
	}
	sched, err := s.parser.Parse(s.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("digest schedule %q: %w", s.cfg.Schedule, err)
	}

	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		defer cancel()
		if err := s.RunNow(ctx); err != nil {
			s.log.Warn("digest send failed", logx.Err(err))
		}
	}))
	c.Start()
	s.c = c
	s.log.Info("digest scheduled", logx.String("schedule", s.cfg.Schedule), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Apply reschedules with cfg when anything changed.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg == s.cfg {
		return nil
	}
	s.cfg = cfg
	if s.ctx == nil {
		return nil
	}
	s.stopLocked()
	return s.startLocked()
}

var ErrNoTarget = errors.New("digest has no target chat")

// RunNow renders and sends one digest.
func (s *Service) RunNow(ctx context.Context) error {
	s.mu.Lock()
	to := kit.ChatTarget{ChatID: s.cfg.ChatID, ThreadID: s.cfg.ThreadID}
	s.mu.Unlock()
	if to.ChatID == 0 {
		return ErrNoTarget
	}
	_, err := s.send.SendText(ctx, to, s.render(), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}
