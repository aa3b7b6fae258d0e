package adapter

import (
	"strings"
	"unicode/utf8"

	kit "limitedwatch/internal/transport"
	"limitedwatch/pkg/tgui"
)

const (
	telegramTextLimit    = 4000
	telegramCaptionLimit = 1024
)

// RenderCard turns a card into Telegram HTML. Telegram has no accent
// colors, so the severity shows as the leading marker.
func RenderCard(c kit.Card) string {
	title := tgui.Link(c.Title, c.URL)
	if c.Marker != "" {
		title = tgui.Esc(c.Marker) + " " + title
	}
	parts := []tgui.H{title, ""}
	for _, l := range c.Lines {
		parts = append(parts, tgui.Field(l.Label, l.Value))
	}
	if c.Footer != "" {
		parts = append(parts, "", tgui.I(c.Footer))
	}
	// JoinH drops blanks; keep the spacer lines explicit.
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.String())
	}
	return b.String()
}

// FitCard renders c within limit runes. Trailing lines are dropped first,
// then the footer, then the title is shortened.
func FitCard(c kit.Card, limit int) string {
	out := RenderCard(c)
	for runeLen(out) > limit && len(c.Lines) > 0 {
		c.Lines = c.Lines[:len(c.Lines)-1]
		out = RenderCard(c)
	}
	if runeLen(out) > limit {
		c.Footer = ""
		c.Title = tgui.TruncRunes(c.Title, 64)
		out = RenderCard(c)
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// splitTelegramText splits long messages into sendable chunks. It prefers
// newline boundaries and, in HTML mode, avoids cutting inside a tag.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	var out []string
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start+limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			open, closed := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					open = i
				case '>':
					closed = i
				}
			}
			if open > closed && open > start+1 {
				end = open
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
