package adapter

import (
	"strings"
	"testing"

	kit "limitedwatch/internal/transport"
)

func TestRenderCard(t *testing.T) {
	got := RenderCard(kit.Card{
		Title:  "Fedora <Red>",
		URL:    "https://www.roblox.com/catalog/1",
		Marker: "🟪",
		Lines: []kit.CardLine{
			{Label: "Price", Value: "800"},
			{Label: "Reduction", Value: "20.00%"},
		},
		Footer: "Rolimons Item Tracking",
	})
	want := strings.Join([]string{
		`🟪 <a href="https://www.roblox.com/catalog/1">Fedora &lt;Red&gt;</a>`,
		``,
		`<b>Price:</b> 800`,
		`<b>Reduction:</b> 20.00%`,
		``,
		`<i>Rolimons Item Tracking</i>`,
	}, "\n")
	if got != want {
		t.Fatalf("RenderCard mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		if got := splitTelegramText("abc", 10, ""); len(got) != 1 || got[0] != "abc" {
			t.Fatalf("unexpected %q", got)
		}
	})
	t.Run("prefers newline", func(t *testing.T) {
		got := splitTelegramText("aaaaaa\nbbbbbb", 10, "")
		if len(got) != 2 || got[0] != "aaaaaa" || got[1] != "bbbbbb" {
			t.Fatalf("unexpected %q", got)
		}
	})
	t.Run("avoids tag", func(t *testing.T) {
		got := splitTelegramText("abcdef<b>x</b>", 8, "HTML")
		if got[0] != "abcdef" {
			t.Fatalf("tag was cut: %q", got)
		}
		if strings.Join(got, "") != "abcdef<b>x</b>" {
			t.Fatalf("content lost: %q", got)
		}
	})
}

func TestFitCardStaysInOneMessage(t *testing.T) {
	card := kit.Card{
		Title:  strings.Repeat("Sparkle Time ", 40),
		URL:    "https://www.roblox.com/catalog/1",
		Footer: "Rolimons Item Tracking",
	}
	for i := 0; i < 60; i++ {
		card.Lines = append(card.Lines, kit.CardLine{Label: "Note", Value: strings.Repeat("<&>", 20)})
	}
	if runeLen(RenderCard(card)) <= telegramTextLimit {
		t.Fatalf("fixture should overflow")
	}

	got := FitCard(card, telegramTextLimit)
	if runeLen(got) > telegramTextLimit {
		t.Fatalf("fitted card has %d runes", runeLen(got))
	}
	if chunks := splitTelegramText(got, telegramTextLimit, "HTML"); len(chunks) != 1 {
		t.Fatalf("fitted card splits into %d messages", len(chunks))
	}
	if !strings.Contains(got, "<b>Note:</b>") || !strings.HasSuffix(got, "<i>Rolimons Item Tracking</i>") {
		t.Fatalf("fitting dropped more than needed:\n%s", got)
	}

	short := kit.Card{Title: "Fedora", URL: "https://www.roblox.com/catalog/2"}
	if FitCard(short, telegramTextLimit) != RenderCard(short) {
		t.Fatalf("short card changed by fitting")
	}
}
