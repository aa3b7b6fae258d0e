package router

import (
	"sort"
	"strings"
	"unicode"

	kit "limitedwatch/internal/transport"
	"limitedwatch/pkg/tgui"
)

// helpText renders HTML help for every command, or for one when args
// names it.
func (m *CommandManager) helpText(args []string) string {
	m.mu.RLock()
	table := m.cmds
	order := m.order
	m.mu.RUnlock()

	if len(args) > 0 {
		c, ok := table[strings.TrimPrefix(args[0], "/")]
		if !ok {
			return tgui.JoinH("\n", tgui.B("❓ Unknown command"), tgui.Esc("Try ")+tgui.Code("/help")).String()
		}
		return commandHelp(c).String()
	}

	sorted := append([]*Command(nil), order...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Access != sorted[j].Access {
			return sorted[i].Access < sorted[j].Access
		}
		return sorted[i].Route < sorted[j].Route
	})

	lines := []tgui.H{tgui.B("📚 Commands"), tgui.Esc("Send ") + tgui.Code("/help <cmd>") + tgui.Esc(" for details."), ""}
	for _, c := range sorted {
		prefix := "• "
		if c.Access == AccessOwnerOnly {
			prefix = "• 🔒 "
		}
		line := tgui.Esc(prefix) + tgui.Code("/"+c.Route)
		if d := strings.TrimSpace(c.Description); d != "" {
			line += tgui.Esc(" - " + d)
		}
		lines = append(lines, line)
	}
	return joinLines(lines)
}

func commandHelp(c *Command) tgui.H {
	lines := []tgui.H{tgui.B("📚 Help") + " " + tgui.Code("/"+c.Route)}
	if d := strings.TrimSpace(c.Description); d != "" {
		lines = append(lines, tgui.Esc(d))
	}
	if c.Access == AccessOwnerOnly {
		lines = append(lines, tgui.I("🔒 owner only"))
	}
	if u := strings.TrimSpace(c.Usage); u != "" {
		lines = append(lines, "", tgui.B("Usage"), tgui.Code(u))
	}
	if len(c.Aliases) > 0 {
		al := append([]string(nil), c.Aliases...)
		sort.Strings(al)
		lines = append(lines, "", tgui.B("Aliases"), tgui.Code("/"+strings.Join(al, " /")))
	}
	return tgui.H(joinLines(lines))
}

func joinLines(lines []tgui.H) string {
	ss := make([]string, len(lines))
	for i, l := range lines {
		ss[i] = l.String()
	}
	return strings.Join(ss, "\n")
}

// sanitizeTelegramCommand maps a route onto Telegram's [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '/' || unicode.IsSpace(r):
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

func buildMenu(cmds []*Command) []kit.BotCommand {
	seen := map[string]bool{}
	out := make([]kit.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		name := sanitizeTelegramCommand(c.Route)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if c.Access == AccessOwnerOnly {
			desc = "🔒 " + desc
		}
		out = append(out, kit.BotCommand{Command: name, Description: tgui.TruncRunes(desc, 256)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}
