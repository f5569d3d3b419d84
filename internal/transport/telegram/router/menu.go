package router

import (
	"html"
	"strings"
	"unicode"

	kit "pollbot/internal/transport"
)

// sanitizeTelegramCommand maps a name onto Telegram's [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if r == '_' {
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
		// Common separators become underscores.
		if r == '-' || unicode.IsSpace(r) || r == '/' {
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
		// drop anything else
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	if out == "" {
		return ""
	}
	// Telegram clients generally expect commands to start with a letter.
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
		if len(out) > 32 {
			out = strings.TrimRight(out[:32], "_")
		}
	}
	return out
}

// buildMenu lists visible commands for the Telegram menu, in registration order.
func buildMenu(list []Command) []kit.BotCommand {
	seen := map[string]bool{}
	out := make([]kit.BotCommand, 0, len(list))
	for _, c := range list {
		if c.Hidden {
			continue
		}
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		if len(desc) > 256 {
			desc = desc[:256]
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
		if len(out) >= 100 {
			break
		}
	}
	return out
}

// HelpText renders the visible commands as Telegram HTML.
func HelpText(title string, list []Command) string {
	lines := []string{"<b>" + html.EscapeString(title) + "</b>", ""}
	for _, c := range list {
		if c.Hidden {
			continue
		}
		usage := strings.TrimSpace(c.Usage)
		if usage == "" {
			usage = "/" + c.Name
		}
		line := "<code>" + html.EscapeString(usage) + "</code>"
		if d := strings.TrimSpace(c.Description); d != "" {
			line += " - " + html.EscapeString(d)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
