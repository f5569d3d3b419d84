// Package tgui provides small Telegram UI helpers:
//   - Inline keyboard builders
//   - Callback data helpers (prefix:action:payload)
//   - A server-side token store for callback payloads
//   - A message builder that escapes for ParseMode=HTML
package tgui
