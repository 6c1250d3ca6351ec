package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/telegram"
	"github.com/denizatli/hattakip/internal/transit"
)

// RunLoop polls live stop data for one session until a terminal condition is
// reached, editing the session's status message each iteration. The loop
// holds no session state in memory: every iteration re-reads the session from
// storage, so a session finalized elsewhere (user stop, restart, eviction)
// ends the loop on its next pass.
//
// Terminal conditions, checked in order each iteration: session gone from
// storage, upstream fetch failure, line no longer present in stop data,
// vehicle reported absent, countdown reached zero, iteration cap.
func (t *Tracker) RunLoop(ctx context.Context, chatID int64, token string) error {
	defer func() {
		if err := t.spawner.Release(ctx, token); err != nil {
			t.logger.Warn("release worker lock", "token", token, "error", err)
		}
	}()

	for iteration := 1; ; iteration++ {
		sessions, err := t.sessions.GetChat(ctx, chatID)
		if err != nil {
			return fmt.Errorf("service.Tracker.RunLoop: %w", err)
		}
		session, ok := sessions[token]
		if !ok {
			// Finalized by another actor; nothing left to do.
			return nil
		}

		t.metrics.LoopIterations.Inc()

		start := t.now()
		payload, err := t.transit.StopStatus(ctx, session.StopID)
		t.metrics.UpstreamFetchDuration.Observe(t.now().Sub(start).Seconds())
		if err != nil {
			t.logger.Warn("stop status fetch failed", "token", token, "stop", session.StopID, "error", err)
			t.finalize(ctx, chatID, token, "Durak servisine ulaşılamadı. Takip sonlandırıldı.", "upstream")
			return nil
		}

		node, found := transit.FindLine(payload, session.LineCode)
		if !found {
			t.finalize(ctx, chatID, token, "Otobüs durağı geçti veya artık görünmüyor. Takip tamamlandı.", "completed")
			return nil
		}

		eta := transit.LiveETAFromNode(node)

		text := formatStatusMessage(session, eta, t.now())
		if err := t.messenger.EditMessageText(ctx, chatID, session.MessageID, text, stopKeyboard(token)); err != nil {
			t.logger.Warn("edit status message", "token", token, "error", err)
		}

		if eta.Status == transit.StatusAbsent {
			t.finalize(ctx, chatID, token, "Otobüs durağı geçti. Takip tamamlandı.", "absent")
			return nil
		}
		if eta.Minutes != nil && *eta.Minutes <= 0 {
			t.finalize(ctx, chatID, token, "Otobüs durağa ulaştı gibi görünüyor. Takip sonlandırıldı.", "arrived")
			return nil
		}
		if iteration >= t.maxIterations {
			t.finalize(ctx, chatID, token, "Takip 20 dakika sonunda otomatik sonlandırıldı.", "timeout")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}

// stopKeyboard is the single-button markup attached to live status messages.
func stopKeyboard(token string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "✋ Takibi bırak", CallbackData: "track:stop|" + token},
		}},
	}
}

// formatStartMessage builds the first tracking message, sent when a session
// opens. The live fields come from the request's snapshot taken at planning
// time.
func formatStartMessage(req domain.TrackingRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👀 <b>%s</b> hattı için takip başlatıldı.\n", telegram.EscapeHTML(req.LineDisplay))
	b.WriteString(stopLine(req.StopID, req.StopName))
	if req.DestStopName != "" {
		fmt.Fprintf(&b, "🎯 İniş: %s\n", telegram.EscapeHTML(req.DestStopName))
	}
	if req.Minutes != nil {
		fmt.Fprintf(&b, "⏱️ İlk tahmin: <b>%d dk</b>\n", *req.Minutes)
	}
	b.WriteString("\nTakip otomatik olarak her 30 saniyede bir güncellenecek.")
	return b.String()
}

// formatStatusMessage builds the live status text written into the session's
// message on each loop iteration.
func formatStatusMessage(session domain.TrackingSession, eta domain.LiveETA, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👀 <b>%s</b> hattı takibi\n", telegram.EscapeHTML(session.LineDisplay))
	b.WriteString(stopLine(session.StopID, session.StopName))
	if session.DestStopName != "" {
		fmt.Fprintf(&b, "🎯 İniş: %s\n", telegram.EscapeHTML(session.DestStopName))
	}
	if eta.Minutes != nil {
		fmt.Fprintf(&b, "⏱️ Kalan süre: <b>%d dk</b>\n", *eta.Minutes)
	}
	switch eta.Status {
	case transit.StatusPresent:
		b.WriteString("🚦 Araç durakta/rota üzerinde görünüyor.\n")
	case "":
	default:
		fmt.Fprintf(&b, "🚦 Durum: %s\n", telegram.EscapeHTML(eta.Status))
	}
	fmt.Fprintf(&b, "🕒 Güncelleme: %s", at.Format("15:04:05"))
	return b.String()
}

// formatFinalMessage builds the terminal text a finalized session's message
// is rewritten to.
func formatFinalMessage(session domain.TrackingSession, finalText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👀 <b>%s</b> hattı takibi\n", telegram.EscapeHTML(session.LineDisplay))
	b.WriteString(stopLine(session.StopID, session.StopName))
	b.WriteString("\n")
	b.WriteString(finalText)
	return b.String()
}

func stopLine(stopID, stopName string) string {
	return fmt.Sprintf("🚏 Durak: <b>#%s %s</b>\n", telegram.EscapeHTML(stopID), telegram.EscapeHTML(stopName))
}
