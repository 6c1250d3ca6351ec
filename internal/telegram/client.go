package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls the Telegram Bot API over HTTPS. All messages are sent with
// HTML parse mode; callers escape user-controlled text with EscapeHTML.
type Client struct {
	httpClient *http.Client
	baseURL    string // https://api.telegram.org/bot<token>
}

// NewClient constructs a Client for the given bot token. Pass nil to use a
// default http.Client with a 15 second timeout. apiBaseURL overrides the
// Bot API host for tests; pass "" for the production endpoint.
func NewClient(token string, httpClient *http.Client, apiBaseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if apiBaseURL == "" {
		apiBaseURL = "https://api.telegram.org"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(apiBaseURL, "/") + "/bot" + token,
	}
}

// apiResponse is the Bot API envelope common to every method.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

// SendMessage sends an HTML-formatted message and returns its message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (int, error) {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}

	result, err := c.call(ctx, "sendMessage", payload)
	if err != nil {
		return 0, fmt.Errorf("telegram.Client.SendMessage: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("telegram.Client.SendMessage: decode result: %w", err)
	}
	return msg.MessageID, nil
}

// EditMessageText replaces the text and keyboard of an existing message.
// Pass NoButtons() to strip all interactive controls. Editing a message
// that no longer exists or already has the same content returns an error;
// callers treating edits as idempotent should log and ignore it.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *InlineKeyboardMarkup) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"message_id":               messageID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}

	if _, err := c.call(ctx, "editMessageText", payload); err != nil {
		return fmt.Errorf("telegram.Client.EditMessageText: %w", err)
	}
	return nil
}

// AnswerCallbackQuery acknowledges a button press, optionally with a toast
// (showAlert=false) or a modal alert (showAlert=true).
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = showAlert
	}

	if _, err := c.call(ctx, "answerCallbackQuery", payload); err != nil {
		return fmt.Errorf("telegram.Client.AnswerCallbackQuery: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !api.OK {
		return nil, fmt.Errorf("%s: %s", method, api.Description)
	}
	return api.Result, nil
}

// htmlEscaper covers the characters Telegram's HTML parse mode requires to
// be entity-encoded in text content.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeHTML escapes user-controlled text for HTML parse mode.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
