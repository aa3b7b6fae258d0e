package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	rtsup "limitedwatch/internal/runtime/supervisor"
	kit "limitedwatch/internal/transport"
	logx "limitedwatch/pkg/logx"
)

// ErrUsage marks an error caused by malformed command arguments.
var ErrUsage = errors.New("bad usage")

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Route       string   // single token, e.g. "set_robux"
	Aliases     []string // extra names, e.g. ["robux"]
	Description string
	Usage       string
	Access      Access

	Timeout time.Duration // optional per-command override
	Handle  HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Usage   string
	Args    []string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// HasFlag reports whether --name was given, with or without a value.
func (r *Request) HasFlag(name string) bool {
	if r.BoolFlags[name] {
		return true
	}
	_, ok := r.Flags[name]
	return ok
}

func (r *Request) logger(fallback logx.Logger) logx.Logger {
	if r != nil && !r.Logger.IsZero() {
		return r.Logger
	}
	return fallback
}

// Reply sends HTML text to the chat the command came from.
func (r *Request) Reply(ctx context.Context, html string) (kit.MessageRef, error) {
	return r.Adapter.SendText(ctx, r.Chat, html, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
}

// ReplyPrivate sends HTML text to the author directly. Messages without an
// author (channel posts) fall back to the invoking chat.
func (r *Request) ReplyPrivate(ctx context.Context, html string) (kit.MessageRef, error) {
	if r.FromID == 0 {
		return r.Reply(ctx, html)
	}
	return r.Adapter.SendText(ctx, kit.ChatTarget{ChatID: r.FromID}, html, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
}

// CommandManager routes chat messages to commands. Commands run one at a
// time on a single worker, in arrival order.
type CommandManager struct {
	mu    sync.RWMutex
	cmds  map[string]*Command // route and aliases -> command
	order []*Command
	mws   []Middleware

	owners []int64

	log     logx.Logger
	adapter kit.Adapter

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, owners []int64) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CommandManager{
		cmds:    map[string]*Command{},
		log:     log,
		adapter: adapter,
		owners:  append([]int64(nil), owners...),
		jobs:    make(chan func(), 64),
	}
}

// SetOwners replaces the owner list. Safe during hot reload.
func (m *CommandManager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

// Use appends middleware that runs inside the built-in chain, closest to
// the handler.
func (m *CommandManager) Use(mw ...Middleware) {
	m.mu.Lock()
	m.mws = append(m.mws, mw...)
	m.mu.Unlock()
}

// SetRegistry installs cmds plus an auto-generated /help and publishes the
// menu when the adapter supports it.
func (m *CommandManager) SetRegistry(ctx context.Context, cmds []Command) {
	cmds = append(cmds, Command{
		Route:       "help",
		Aliases:     []string{"h", "start"},
		Description: "list commands",
		Usage:       "/help [command]",
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Reply(ctx, m.helpText(req.Args))
			return err
		},
	})

	table := map[string]*Command{}
	order := make([]*Command, 0, len(cmds))
	for i := range cmds {
		c := &cmds[i]
		route := strings.TrimSpace(c.Route)
		if route == "" || c.Handle == nil {
			continue
		}
		table[route] = c
		order = append(order, c)
		for _, a := range c.Aliases {
			if a = strings.TrimSpace(a); a != "" {
				if _, taken := table[a]; !taken {
					table[a] = c
				}
			}
		}
	}

	m.mu.Lock()
	m.cmds = table
	m.order = order
	m.mu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		go func() {
			mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(mctx, buildMenu(order)); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		}()
	}
}

func (m *CommandManager) lookup(word string) (*Command, []int64, []Middleware) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cmds[word], append([]int64(nil), m.owners...), m.mws
}

// DispatchLoop consumes updates until ctx is done or updates closes.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(m.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	sup.GoRestart("command.worker", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case job := <-m.jobs:
				job()
			}
		}
	},
		rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
		rtsup.WithPublishFirstError(true),
	)
	m.log.Info("command dispatcher started", logx.Int("job_queue_cap", cap(m.jobs)))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.route(ctx, up)
		}
	}
}

func (m *CommandManager) route(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	raw := parts[1:]
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, owners, mws := m.lookup(word)
	if cmd == nil {
		_, _ = m.adapter.SendText(ctx, chat, "unknown command, try /help", nil)
		return
	}
	if cmd.Access == AccessOwnerOnly && len(owners) > 0 && !isOwner(msg.FromID, owners) {
		_, _ = m.adapter.SendText(ctx, chat, "unauthorized", nil)
		return
	}

	pos, flags, bools := parseFlags(raw)
	rid := newReqID()
	req := &Request{
		Update:    up,
		Chat:      chat,
		FromID:    msg.FromID,
		Command:   cmd.Route,
		Usage:     cmd.Usage,
		Args:      pos,
		RawArgs:   raw,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Adapter:   m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Route),
		),
	}

	chain := append([]Middleware{
		MWReplyError(),
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	}, mws...)
	final := Chain(cmd.Handle, chain...)

	select {
	case m.jobs <- func() { _ = final(ctx, req) }:
	default:
		_, _ = m.adapter.SendText(ctx, chat, "busy, try again", nil)
	}
}

// isOwner reports whether id is listed. An empty owner list means the gate
// is off, which callers check before calling.
func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}
