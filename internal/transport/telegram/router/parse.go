package router

import (
	"strings"

	"github.com/google/uuid"
)

// newReqID returns a short request id for log correlation.
func newReqID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// splitCommand parses "/name@bot arg1 arg2". ok is false for non-commands.
func splitCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := tokenize(text)
	if len(parts) == 0 {
		return "", nil, false
	}
	name = strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	if name == "" {
		return "", nil, false
	}
	return name, parts[1:], true
}

// tokenize splits on whitespace and honors single or double quotes:
//
//	/remove_days "fri_суббота"
func tokenize(s string) []string {
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar rune
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for _, ch := range s {
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteRune(ch)
			continue
		}
		switch ch {
		case '"', '\'':
			inQ = true
			qChar = ch
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteRune(ch)
		}
	}
	flush()
	return out
}
