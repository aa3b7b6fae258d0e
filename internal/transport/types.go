package transport

import (
	"context"
	"errors"
)

// ErrChannelNotFound is returned by ResolveChannel when no chat answers to
// the given name.
var ErrChannelNotFound = errors.New("transport: channel not found")

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Card is a platform-neutral rich notification.
type Card struct {
	Title    string
	URL      string
	Lines    []CardLine
	Color    uint32
	Marker   string
	ImageURL string
	Footer   string
}

type CardLine struct {
	Label string
	Value string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendCard(ctx context.Context, to ChatTarget, card Card) (MessageRef, error)
	Delete(ctx context.Context, ref MessageRef) error

	// ResolveChannel maps a channel name (or numeric id) to a target.
	ResolveChannel(ctx context.Context, name string) (ChatTarget, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
