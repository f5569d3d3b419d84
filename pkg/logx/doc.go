// Package logx wraps zerolog for the bot.
//
// Console output stays short (timestamp + file:line), the optional file sink
// is JSON, and the optional Telegram sink forwards records at or above a
// minimum level to the log chat through a rate limiter.
package logx
