// Package fake provides an in-memory transport.Adapter for tests.
package fake

import (
	"context"
	"fmt"
	"sync"

	kit "limitedwatch/internal/transport"
)

type Sent struct {
	To   kit.ChatTarget
	Text string
	Card *kit.Card
	Ref  kit.MessageRef
}

// Adapter records every outbound call. Failures can be injected per call.
type Adapter struct {
	mu       sync.Mutex
	nextID   int
	sent     []Sent
	deleted  []kit.MessageRef
	channels map[string]int64

	// FailSend, when set, decides whether the n-th (1-based) send fails.
	FailSend   func(n int) error
	FailDelete func(ref kit.MessageRef) error
	sends      int
}

func New() *Adapter {
	return &Adapter{channels: map[string]int64{}}
}

// AddChannel makes name resolvable to chatID.
func (a *Adapter) AddChannel(name string, chatID int64) {
	a.mu.Lock()
	a.channels[name] = chatID
	a.mu.Unlock()
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error                         { return nil }

func (a *Adapter) send(to kit.ChatTarget, text string, card *kit.Card) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sends++
	if a.FailSend != nil {
		if err := a.FailSend(a.sends); err != nil {
			return kit.MessageRef{}, err
		}
	}
	a.nextID++
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: a.nextID}
	a.sent = append(a.sent, Sent{To: to, Text: text, Card: card, Ref: ref})
	return ref, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return a.send(to, text, nil)
}

func (a *Adapter) SendCard(ctx context.Context, to kit.ChatTarget, card kit.Card) (kit.MessageRef, error) {
	c := card
	return a.send(to, card.Title, &c)
}

func (a *Adapter) Delete(ctx context.Context, ref kit.MessageRef) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailDelete != nil {
		if err := a.FailDelete(ref); err != nil {
			return err
		}
	}
	a.deleted = append(a.deleted, ref)
	return nil
}

func (a *Adapter) ResolveChannel(ctx context.Context, name string) (kit.ChatTarget, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.channels[name]
	if !ok {
		return kit.ChatTarget{}, fmt.Errorf("%w: %s", kit.ErrChannelNotFound, name)
	}
	return kit.ChatTarget{ChatID: id}, nil
}

func (a *Adapter) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.sent...)
}

func (a *Adapter) Deleted() []kit.MessageRef {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]kit.MessageRef(nil), a.deleted...)
}
