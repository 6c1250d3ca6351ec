// Package telegram is a minimal client for the Bot API surface this service
// needs: receiving webhook updates and sending/editing messages with inline
// keyboards. It is not a general-purpose SDK.
package telegram

// Update is an incoming webhook payload. Exactly one of Message or
// CallbackQuery is set for the updates this bot handles.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an incoming or sent chat message.
type Message struct {
	MessageID int       `json:"message_id"`
	Chat      Chat      `json:"chat"`
	Text      string    `json:"text,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// Location is a shared GPS position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CallbackQuery is a button press on an inline keyboard.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// InlineKeyboardMarkup attaches button rows to a message. An empty
// InlineKeyboard strips all buttons when used with EditMessageText.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is a single button; exactly one of URL or
// CallbackData should be set.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// NoButtons is the markup that removes every inline button from a message.
// Finalized tracking messages use it to strip the stop-tracking control.
func NoButtons() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
}
