package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/service"
	"github.com/denizatli/hattakip/internal/telegram"
)

// Callback data prefixes on inline keyboard buttons.
const (
	callbackTrackStart = "track:start|"
	callbackTrackStop  = "track:stop|"
	callbackBusPage    = "bus:page|"
	callbackBusLine    = "bus:line|"
	callbackBusList    = "bus:mode|list"
	callbackBusSearch  = "bus:search|prompt"
)

// scheduleMenuCommand is the reply-keyboard label and the slash command that
// both open the departure-times menu.
const (
	scheduleMenuLabel   = "🕒 Hareket Saatleri"
	scheduleMenuCommand = "/saatler"
)

const mainMenuText = "✨ <b>Mersin Ulaşım Asistanı</b>\n\n" +
	"Konumunu ve hedefini paylaş, sana uygun otobüs hatlarını bulup canlı takip edeyim.\n" +
	"Hat kalkış saatleri için aşağıdaki menüyü kullanabilirsin."

const lockedMenuText = "✨ <b>Mersin Ulaşım Asistanı</b>\n\n" +
	"🔒 Bu bot yalnızca yetkilendirilmiş kullanıcılar tarafından kullanılabilir.\n" +
	"Lütfen erişim için yönetici ile iletişime geçin."

const registrationClosedText = "Yeni kullanıcı kaydı şu anda kapalı."

// PostWebhook handles POST /webhook: Telegram update delivery. Telegram
// retries any non-200 response, so processing failures are logged and
// swallowed; only an unreadable body is rejected.
func (s *Server) PostWebhook(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed update")
		return
	}

	switch {
	case update.CallbackQuery != nil:
		s.handleCallback(w, r, update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(w, r, update.Message)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// handleCallback dispatches inline button presses. Callbacks are not gated
// on the access list: the buttons only exist on messages the bot already
// sent to an authorized chat.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request, cb *telegram.CallbackQuery) {
	ctx := r.Context()

	if cb.Message == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	switch {
	case strings.HasPrefix(cb.Data, callbackTrackStart):
		token := strings.TrimPrefix(cb.Data, callbackTrackStart)
		err := s.tracker.Start(ctx, chatID, token)
		switch {
		case errors.Is(err, domain.ErrExpired):
			s.answerCallback(ctx, cb.ID, "Takip isteği zaman aşımına uğradı. Yeniden deneyin.", true)
		case err != nil:
			s.logger.Error("start tracking", "chat_id", chatID, "token", token, "error", err)
			s.answerCallback(ctx, cb.ID, "Takip başlatılamadı.", true)
		default:
			s.answerCallback(ctx, cb.ID, "Takip başlatılıyor...", false)
		}

	case strings.HasPrefix(cb.Data, callbackTrackStop):
		token := strings.TrimPrefix(cb.Data, callbackTrackStop)
		err := s.tracker.Stop(ctx, chatID, token)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.answerCallback(ctx, cb.ID, "Aktif takip bulunamadı.", true)
		case err != nil:
			s.logger.Error("stop tracking", "chat_id", chatID, "token", token, "error", err)
			s.answerCallback(ctx, cb.ID, "", false)
		default:
			s.answerCallback(ctx, cb.ID, "Takip sonlandırıldı.", false)
		}

	case strings.HasPrefix(cb.Data, callbackBusPage):
		page, err := strconv.Atoi(strings.TrimPrefix(cb.Data, callbackBusPage))
		if err != nil {
			s.answerCallback(ctx, cb.ID, "", false)
			break
		}
		s.sendScheduleMenu(ctx, cb, chatID, page, messageID, "")

	case cb.Data == callbackBusList:
		s.sendScheduleMenu(ctx, cb, chatID, 0, messageID, "Listeye dönüldü.")

	case cb.Data == callbackBusSearch:
		s.answerCallback(ctx, cb.ID, "Aramak istediğin hatı mesaj olarak yazabilirsin.", false)

	case strings.HasPrefix(cb.Data, callbackBusLine):
		post := strings.TrimPrefix(cb.Data, callbackBusLine)
		err := s.schedule.SendSchedule(ctx, chatID, post)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.answerCallback(ctx, cb.ID, "Hat bulunamadı.", true)
		case errors.Is(err, service.ErrEmptySchedule):
			s.answerCallback(ctx, cb.ID, "", false)
			s.sendText(ctx, chatID, "Bu hat için tarifeler bulunamadı.")
		case err != nil:
			s.logger.Error("send line schedule", "chat_id", chatID, "post", post, "error", err)
			s.answerCallback(ctx, cb.ID, "Tarife alınamadı.", false)
		default:
			s.answerCallback(ctx, cb.ID, "Hat seçildi.", false)
		}

	default:
		s.answerCallback(ctx, cb.ID, "", false)
	}

	w.WriteHeader(http.StatusOK)
}

// sendScheduleMenu edits the chat's menu message to the given page and
// acknowledges the callback. An empty catalogue becomes a modal alert.
func (s *Server) sendScheduleMenu(ctx context.Context, cb *telegram.CallbackQuery, chatID int64, page, messageID int, answer string) {
	if err := s.schedule.SendMenu(ctx, chatID, page, messageID); err != nil {
		if errors.Is(err, service.ErrNoLines) {
			s.answerCallback(ctx, cb.ID, "Hat listesi yüklenemedi.", true)
			return
		}
		s.logger.Error("send schedule menu", "chat_id", chatID, "page", page, "error", err)
	}
	s.answerCallback(ctx, cb.ID, answer, false)
}

// handleMessage dispatches chat messages. Every message except the
// registration commands requires the chat to be on the access list.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, msg *telegram.Message) {
	ctx := r.Context()
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	// Registration is answered before the gate so an unregistered user
	// at least learns registration is closed.
	switch command(text) {
	case "/register", "/kayit":
		s.sendText(ctx, chatID, registrationClosedText)
		w.WriteHeader(http.StatusOK)
		return
	}

	registered, err := s.users.IsRegistered(ctx, chatID)
	if err != nil {
		s.logger.Error("check registration", "chat_id", chatID, "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if !registered {
		s.sendText(ctx, chatID, lockedMenuText)
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case command(text) == "/start":
		s.sendMainMenu(ctx, chatID)

	case text == scheduleMenuLabel || command(text) == scheduleMenuCommand:
		s.openScheduleMenu(ctx, chatID)

	case text != "":
		if err := s.schedule.SendSearch(ctx, chatID, text, 0); err != nil {
			s.logger.Error("send line search", "chat_id", chatID, "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// sendMainMenu sends the assistant greeting with the departure-times button.
func (s *Server) sendMainMenu(ctx context.Context, chatID int64) {
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: scheduleMenuLabel, CallbackData: callbackBusList},
		}},
	}
	if _, err := s.notifier.SendMessage(ctx, chatID, mainMenuText, markup); err != nil {
		s.logger.Error("send main menu", "chat_id", chatID, "error", err)
	}
}

// openScheduleMenu sends a fresh departure-times menu message.
func (s *Server) openScheduleMenu(ctx context.Context, chatID int64) {
	err := s.schedule.SendMenu(ctx, chatID, 0, 0)
	if err == nil {
		return
	}
	if !errors.Is(err, service.ErrNoLines) {
		s.logger.Error("open schedule menu", "chat_id", chatID, "error", err)
	}
	s.sendText(ctx, chatID, "Hat listesi şu anda alınamadı: daha sonra yeniden dene.")
}

// command extracts a leading slash command, dropping the @botname suffix.
// Returns "" for non-command text.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// sendText sends a plain message, logging failures.
func (s *Server) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := s.notifier.SendMessage(ctx, chatID, text, nil); err != nil {
		s.logger.Error("send message", "chat_id", chatID, "error", err)
	}
}

// answerCallback acknowledges a callback query, logging failures. Telegram
// shows a spinner on the button until the query is answered.
func (s *Server) answerCallback(ctx context.Context, callbackID, text string, showAlert bool) {
	if err := s.notifier.AnswerCallbackQuery(ctx, callbackID, text, showAlert); err != nil {
		s.logger.Warn("answer callback query", "callback_id", callbackID, "error", err)
	}
}
