package schedule

import (
	"errors"
	"strings"
)

const (
	// OptionsSeparator splits the options message into answers.
	OptionsSeparator = ";"
	MinOptions       = 2

	titlePlaceholder = "-"
)

var (
	ErrEmptyTitle    = errors.New("poll title is empty")
	ErrTooFewOptions = errors.New("poll needs at least two options")
)

// DefaultOptions returns the answer set offered as a one-tap choice.
func DefaultOptions() []string {
	return []string{"Да", "Нет", "Резерв", "Тренер"}
}

// ParseTitle trims the title message. Blank input and a lone "-" are rejected.
func ParseTitle(text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" || t == titlePlaceholder {
		return "", ErrEmptyTitle
	}
	return t, nil
}

// ParseOptions splits on ';', trims every piece and drops empty ones.
// Duplicates are kept.
func ParseOptions(text string) ([]string, error) {
	parts := strings.Split(text, OptionsSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) < MinOptions {
		return nil, ErrTooFewOptions
	}
	return out, nil
}
