package router

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	kit "limitedwatch/internal/transport"
	"limitedwatch/internal/transport/fake"
	logx "limitedwatch/pkg/logx"
)

func TestTokenizeAndParseFlags(t *testing.T) {
	toks := tokenizeCommandLine(`/set_robux "12 3" --dry -5 --k=v`)
	want := []string{"/set_robux", "12 3", "--dry", "-5", "--k=v"}
	if strings.Join(toks, "|") != strings.Join(want, "|") {
		t.Fatalf("tokens = %q", toks)
	}

	pos, flags, bools := parseFlags([]string{"-5", "--k=v", "--dry", "x", "--solo"})
	if len(pos) != 1 || pos[0] != "-5" {
		t.Fatalf("pos = %q", pos)
	}
	if flags["k"] != "v" || flags["dry"] != "x" || !bools["solo"] {
		t.Fatalf("flags=%v bools=%v", flags, bools)
	}

	req := &Request{Flags: flags, BoolFlags: bools}
	if !req.HasFlag("dry") || !req.HasFlag("solo") || req.HasFlag("wet") {
		t.Fatalf("HasFlag mismatch for flags=%v bools=%v", flags, bools)
	}
}

func TestSanitizeTelegramCommand(t *testing.T) {
	tests := map[string]string{
		"set_robux":       "set_robux",
		"Set-Reduction":   "set_reduction",
		"  weird//name  ": "weird_name",
		"!!!":             "",
	}
	for in, want := range tests {
		if got := sanitizeTelegramCommand(in); got != want {
			t.Fatalf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func startManager(t *testing.T, owners []int64, cmds ...Command) (*fake.Adapter, chan kit.Update) {
	t.Helper()
	ad := fake.New()
	m := NewCommandManager(logx.Nop(), ad, owners)
	ctx, cancel := context.WithCancel(context.Background())
	m.SetRegistry(ctx, cmds)

	updates := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.DispatchLoop(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ad, updates
}

func msg(text string, from int64) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: 42, FromID: from, Text: text}}
}

func TestDispatchRoutesArgsAndAliases(t *testing.T) {
	var got atomic.Value
	ad, updates := startManager(t, nil, Command{
		Route:   "set_robux",
		Aliases: []string{"robux"},
		Usage:   "/set_robux <amount>",
		Handle: func(ctx context.Context, req *Request) error {
			got.Store(strings.Join(req.Args, ","))
			_, err := req.Reply(ctx, "ok")
			return err
		},
	})

	updates <- msg("/robux@limitedwatch_bot 750", 7)
	waitFor(t, func() bool { return len(ad.Sent()) == 1 })
	if got.Load() != "750" {
		t.Fatalf("args = %v", got.Load())
	}
	if s := ad.Sent()[0]; s.To.ChatID != 42 || s.Text != "ok" {
		t.Fatalf("unexpected reply %+v", s)
	}
}

func TestDispatchUsageErrorBecomesReply(t *testing.T) {
	ad, updates := startManager(t, nil, Command{
		Route: "set_demand",
		Usage: "/set_demand <tier>",
		Handle: func(ctx context.Context, req *Request) error {
			return fmt.Errorf("need an integer: %w", ErrUsage)
		},
	})

	updates <- msg("/set_demand lots", 7)
	waitFor(t, func() bool { return len(ad.Sent()) == 1 })
	txt := ad.Sent()[0].Text
	if !strings.Contains(txt, "need an integer") || !strings.Contains(txt, "<code>/set_demand &lt;tier&gt;</code>") {
		t.Fatalf("unexpected error reply %q", txt)
	}
}

func TestDispatchOwnerGateAndUnknown(t *testing.T) {
	var ran atomic.Int32
	ad, updates := startManager(t, []int64{1}, Command{
		Route:  "clear",
		Access: AccessOwnerOnly,
		Handle: func(ctx context.Context, req *Request) error {
			ran.Add(1)
			return nil
		},
	})

	updates <- msg("/clear", 2)
	updates <- msg("/nope", 2)
	updates <- msg("/clear", 1)
	waitFor(t, func() bool { return ran.Load() == 1 && len(ad.Sent()) == 2 })
	sent := ad.Sent()
	if sent[0].Text != "unauthorized" || !strings.Contains(sent[1].Text, "unknown command") {
		t.Fatalf("unexpected replies %+v", sent)
	}
}

func TestDispatchPanicDoesNotKillWorker(t *testing.T) {
	var ran atomic.Int32
	ad, updates := startManager(t, nil,
		Command{Route: "boom", Handle: func(ctx context.Context, req *Request) error { panic("x") }},
		Command{Route: "ping", Handle: func(ctx context.Context, req *Request) error {
			ran.Add(1)
			return nil
		}},
	)
	updates <- msg("/boom", 1)
	updates <- msg("/ping", 1)
	waitFor(t, func() bool { return ran.Load() == 1 })
	if len(ad.Sent()) != 1 || !strings.Contains(ad.Sent()[0].Text, "panic") {
		t.Fatalf("expected one panic reply, got %+v", ad.Sent())
	}
}

func TestHelpListsCommands(t *testing.T) {
	ad, updates := startManager(t, nil, Command{Route: "status", Description: "show state", Handle: func(context.Context, *Request) error { return nil }})
	updates <- msg("/help", 1)
	waitFor(t, func() bool { return len(ad.Sent()) == 1 })
	txt := ad.Sent()[0].Text
	if !strings.Contains(txt, "<code>/status</code> - show state") || !strings.Contains(txt, "<code>/help</code>") {
		t.Fatalf("unexpected help %q", txt)
	}
}
