package tgui

import (
	"strings"
)

// Data formats inline callback data as "prefix:action:payload".
// Payload is kept as-is; use a TokenStore token for anything structured.
func Data(prefix, action, payload string) string {
	prefix = strings.TrimSpace(prefix)
	action = strings.TrimSpace(action)
	if payload == "" {
		return prefix + ":" + action
	}
	return prefix + ":" + action + ":" + payload
}

// ParseData splits callback data produced by Data.
func ParseData(data string) (prefix, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}

// Fits reports whether data is within Telegram's callback_data limit.
func Fits(data string) bool { return len(data) <= MaxCallbackDataLen }
