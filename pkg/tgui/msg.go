package tgui

import (
	"context"
	"strings"

	kit "pollbot/internal/transport"

	tele "gopkg.in/telebot.v4"
)

// Message is a rendered UI payload: text plus send options.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

// Send sends the message as a new chat message.
func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	return ad.SendText(ctx, to, m.Text, m.options())
}

// Edit replaces the text and keyboard of the message referred by ref.
func (m Message) Edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef) error {
	return ad.EditText(ctx, ref, m.Text, m.options())
}

func (m Message) options() *kit.SendOptions {
	if m.Opt == nil {
		return &kit.SendOptions{}
	}
	return m.Opt
}

// Markup returns the attached inline keyboard, if any.
func (m Message) Markup() *tele.ReplyMarkup {
	if m.Opt == nil {
		return nil
	}
	rm, _ := m.Opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	return rm
}

// Builder composes an HTML message. Defaults: ParseMode=HTML, previews off.
type Builder struct {
	rm    *tele.ReplyMarkup
	lines []string
}

func New() *Builder { return &Builder{} }

// Inline attaches an inline keyboard.
func (b *Builder) Inline(kb *Inline) *Builder {
	if kb == nil {
		b.rm = nil
		return b
	}
	b.rm = kb.Markup()
	return b
}

// Title adds a bold title line. Emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	e := strings.TrimSpace(emoji)
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if e != "" {
		b.lines = append(b.lines, Esc(e).String()+" "+B(t).String())
	} else {
		b.lines = append(b.lines, B(t).String())
	}
	return b
}

// Line adds an escaped line. An empty string adds a blank line.
func (b *Builder) Line(s string) *Builder {
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// RawLine appends already-safe HTML.
func (b *Builder) RawLine(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

// Blank inserts an empty line.
func (b *Builder) Blank() *Builder { return b.Line("") }

// Bullets adds one bullet line per non-empty item.
func (b *Builder) Bullets(items ...string) *Builder {
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		b.Line("• " + it)
	}
	return b
}

// KV adds a "key: value" row with a bold key.
func (b *Builder) KV(key, value string) *Builder {
	key = strings.TrimSpace(key)
	if key == "" {
		return b
	}
	b.lines = append(b.lines, "• "+B(key).String()+": "+Esc(strings.TrimSpace(value)).String())
	return b
}

// Italic adds an italic line, used for hints and errors.
func (b *Builder) Italic(s string) *Builder {
	b.lines = append(b.lines, I(s).String())
	return b
}

// Build produces a ready-to-send Message.
func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if b.rm != nil {
		opt.ReplyMarkupAdapter = b.rm
	}
	return Message{Text: text, Opt: opt}
}
