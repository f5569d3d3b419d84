package tgui

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes,
// measured over the full "prefix:action:payload" string.
const MaxCallbackDataLen = 64
