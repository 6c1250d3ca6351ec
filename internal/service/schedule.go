package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/repo"
	"github.com/denizatli/hattakip/internal/telegram"
	"github.com/denizatli/hattakip/internal/transit"
)

// ScheduleSource is the slice of the transit client the schedule service
// needs: the full line catalogue and one line's timetable.
type ScheduleSource interface {
	LineList(ctx context.Context) (any, error)
	LineSchedule(ctx context.Context, post string) (any, error)
}

const (
	// menuPageSize is how many line buttons one menu page carries.
	menuPageSize = 8
	// searchResultCap bounds how many matches a text search renders.
	searchResultCap = 12
	// messageSplitLimit is where long timetable messages get split. Telegram
	// caps messages at 4096 chars; splitting earlier leaves headroom for
	// HTML entities.
	messageSplitLimit = 3500
)

// ErrNoLines is returned when the menu is requested but the line catalogue
// is empty (never refreshed, or the refresh wiped it).
var ErrNoLines = errors.New("line catalogue empty")

// ErrEmptySchedule is returned when the upstream answers a timetable request
// with no usable departures for the line.
var ErrEmptySchedule = errors.New("no timetable for line")

// ScheduleService serves the departure-times menu: a paged list of municipal
// lines, free-text search over it, and per-line timetables fetched live from
// the upstream. The catalogue itself is cached in Postgres and refreshed
// wholesale via RefreshLines.
type ScheduleService struct {
	lines     repo.LineRepo
	source    ScheduleSource
	messenger Messenger
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduleService constructs a ScheduleService. A nil now defaults to
// time.Now; a nil logger defaults to slog.Default.
func NewScheduleService(lines repo.LineRepo, source ScheduleSource, messenger Messenger, logger *slog.Logger, now func() time.Time) *ScheduleService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleService{
		lines:     lines,
		source:    source,
		messenger: messenger,
		logger:    logger,
		now:       now,
	}
}

// RefreshLines replaces the cached line catalogue with the upstream's
// current full list and returns how many lines were stored. An upstream
// list that parses to zero lines is rejected so a flaky response cannot
// empty the catalogue.
func (s *ScheduleService) RefreshLines(ctx context.Context) (int, error) {
	payload, err := s.source.LineList(ctx)
	if err != nil {
		return 0, fmt.Errorf("service.ScheduleService.RefreshLines: %w", err)
	}

	lines := transit.ParseBusLines(payload)
	if len(lines) == 0 {
		return 0, fmt.Errorf("service.ScheduleService.RefreshLines: %w: upstream list parsed to zero lines", domain.ErrUpstream)
	}

	if err := s.lines.ReplaceAll(ctx, lines); err != nil {
		return 0, fmt.Errorf("service.ScheduleService.RefreshLines: %w", err)
	}
	s.logger.Info("line catalogue refreshed", "lines", len(lines))
	return len(lines), nil
}

// SendMenu sends (messageID == 0) or edits (messageID > 0) the paged line
// menu. An out-of-range page is clamped to the valid range. Returns
// ErrNoLines when the catalogue is empty.
func (s *ScheduleService) SendMenu(ctx context.Context, chatID int64, page int, messageID int) error {
	lines, err := s.lines.List(ctx)
	if err != nil {
		return fmt.Errorf("service.ScheduleService.SendMenu: %w", err)
	}
	if len(lines) == 0 {
		return fmt.Errorf("service.ScheduleService.SendMenu: %w", ErrNoLines)
	}

	pageCount := (len(lines) + menuPageSize - 1) / menuPageSize
	if page < 0 {
		page = 0
	}
	if page >= pageCount {
		page = pageCount - 1
	}

	start := page * menuPageSize
	end := start + menuPageSize
	if end > len(lines) {
		end = len(lines)
	}

	text := fmt.Sprintf(
		"🕒 <b>Hareket Saatleri</b>\n\nListeden bir hat seç veya hat numarasını mesaj olarak yaz.\n\nSayfa %d/%d",
		page+1, pageCount,
	)
	return s.deliver(ctx, chatID, messageID, text, menuKeyboard(lines[start:end], page, pageCount))
}

// SendSearch sends (messageID == 0) or edits (messageID > 0) the result of
// a free-text line search. Matching is a Turkish-lowercase substring test
// over the line number, name and region; results are capped.
func (s *ScheduleService) SendSearch(ctx context.Context, chatID int64, query string, messageID int) error {
	lines, err := s.lines.List(ctx)
	if err != nil {
		return fmt.Errorf("service.ScheduleService.SendSearch: %w", err)
	}

	needle := turkishLower(strings.TrimSpace(query))
	matches := []domain.BusLine{}
	for _, line := range lines {
		haystack := turkishLower(line.LineNo + " " + line.Name + " " + line.Region)
		if strings.Contains(haystack, needle) {
			matches = append(matches, line)
			if len(matches) == searchResultCap {
				break
			}
		}
	}

	shown := telegram.EscapeHTML(strings.TrimSpace(query))
	var text string
	if len(matches) == 0 {
		text = fmt.Sprintf("🔍 <b>Hat Arama</b>\n\n\"%s\" için sonuç bulunamadı.", shown)
	} else {
		text = fmt.Sprintf("🔍 <b>Hat Arama</b>\n\n\"%s\" için %d sonuç:", shown, len(matches))
	}

	rows := make([][]telegram.InlineKeyboardButton, 0, len(matches)+1)
	for _, line := range matches {
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: line.Label(), CallbackData: "bus:line|" + line.Post},
		})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{
		{Text: "⬅️ Listeye dön", CallbackData: "bus:mode|list"},
	})

	return s.deliver(ctx, chatID, messageID, text, &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// SendSchedule fetches the line's timetable, picks today's block, and sends
// it as one or more messages. Returns domain.ErrNotFound when the post is
// not in the catalogue and ErrEmptySchedule when the upstream has no
// departures for it.
func (s *ScheduleService) SendSchedule(ctx context.Context, chatID int64, post string) error {
	line, err := s.lines.FindByPost(ctx, post)
	if err != nil {
		return fmt.Errorf("service.ScheduleService.SendSchedule: %w", err)
	}

	payload, err := s.source.LineSchedule(ctx, line.Post)
	if err != nil {
		return fmt.Errorf("service.ScheduleService.SendSchedule: %w", err)
	}

	grouped := transit.ParseSchedule(payload)
	if len(grouped) == 0 {
		return fmt.Errorf("service.ScheduleService.SendSchedule: %w", ErrEmptySchedule)
	}

	label, entries := selectScheduleForToday(grouped, s.now())
	text := formatScheduleMessage(line, label, entries, s.now())

	for _, chunk := range splitMessage(text, messageSplitLimit) {
		if _, err := s.messenger.SendMessage(ctx, chatID, chunk, nil); err != nil {
			return fmt.Errorf("service.ScheduleService.SendSchedule: %w", err)
		}
	}
	return nil
}

// deliver sends a fresh message or edits an existing one, depending on
// whether the caller carries a message id (callbacks do, commands don't).
func (s *ScheduleService) deliver(ctx context.Context, chatID int64, messageID int, text string, markup *telegram.InlineKeyboardMarkup) error {
	if messageID > 0 {
		if err := s.messenger.EditMessageText(ctx, chatID, messageID, text, markup); err != nil {
			return fmt.Errorf("service.ScheduleService: edit: %w", err)
		}
		return nil
	}
	if _, err := s.messenger.SendMessage(ctx, chatID, text, markup); err != nil {
		return fmt.Errorf("service.ScheduleService: send: %w", err)
	}
	return nil
}

// menuKeyboard builds the markup for one menu page: a button per line,
// then a navigation row. Previous/next buttons only appear where a page
// exists in that direction; the filter button is always present.
func menuKeyboard(lines []domain.BusLine, page, pageCount int) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(lines)+1)
	for _, line := range lines {
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: line.Label(), CallbackData: "bus:line|" + line.Post},
		})
	}

	nav := []telegram.InlineKeyboardButton{}
	if page > 0 {
		nav = append(nav, telegram.InlineKeyboardButton{
			Text: "⬅️ Önceki", CallbackData: fmt.Sprintf("bus:page|%d", page-1),
		})
	}
	nav = append(nav, telegram.InlineKeyboardButton{
		Text: "🔍 Filtrele", CallbackData: "bus:search|prompt",
	})
	if page < pageCount-1 {
		nav = append(nav, telegram.InlineKeyboardButton{
			Text: "➡️ Sonraki", CallbackData: fmt.Sprintf("bus:page|%d", page+1),
		})
	}
	rows = append(rows, nav)

	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// selectScheduleForToday picks the timetable block for the given moment.
// Day labels are matched after normalization, weekday first: Mon-Fri want
// "haftaici", Saturday "cumartesi", Sunday "pazar". A missing block falls
// back along cumartesi → pazar → haftaici order; labels sharing a weekday
// bucket are merged and deduped. When nothing matches at all the
// alphabetically first block is used so the answer stays deterministic.
func selectScheduleForToday(grouped map[string][]domain.ScheduleEntry, now time.Time) (string, []domain.ScheduleEntry) {
	var targets []string
	switch now.Weekday() {
	case time.Saturday:
		targets = []string{"cumartesi", "pazar", "haftaici"}
	case time.Sunday:
		targets = []string{"pazar", "cumartesi", "haftaici"}
	default:
		targets = []string{"haftaici", "cumartesi", "pazar"}
	}

	labels := make([]string, 0, len(grouped))
	for label := range grouped {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, target := range targets {
		var matched []string
		for _, label := range labels {
			if strings.Contains(normalizeScheduleKeyword(label), target) {
				matched = append(matched, label)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if len(matched) == 1 {
			return matched[0], grouped[matched[0]]
		}
		return combineScheduleLabels(matched), mergeScheduleGroups(grouped, matched)
	}

	return labels[0], grouped[labels[0]]
}

// combineScheduleLabels renders the label of a merged block:
// the first label followed by the rest in parentheses.
func combineScheduleLabels(labels []string) string {
	if len(labels) == 1 {
		return labels[0]
	}
	return labels[0] + " (" + strings.Join(labels[1:], ", ") + ")"
}

// mergeScheduleGroups concatenates the matched blocks, dedupes identical
// entries, and re-sorts by departure time.
func mergeScheduleGroups(grouped map[string][]domain.ScheduleEntry, labels []string) []domain.ScheduleEntry {
	seen := map[string]bool{}
	merged := []domain.ScheduleEntry{}
	for _, label := range labels {
		for _, entry := range grouped[label] {
			key := entry.Time + "|" + entry.Title + "|" + entry.Note + "|" + entry.Desc
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, entry)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time < merged[j].Time
	})
	return merged
}

// formatScheduleMessage renders one day's timetable as an HTML message.
func formatScheduleMessage(line domain.BusLine, dayLabel string, entries []domain.ScheduleEntry, now time.Time) string {
	var b strings.Builder

	b.WriteString("🚌 <b>" + telegram.EscapeHTML(line.LineNo+"-"+line.Direction) + "</b>")
	if line.Name != "" {
		b.WriteString(" " + telegram.EscapeHTML(line.Name))
	}
	if line.Region != "" {
		b.WriteString(" (" + telegram.EscapeHTML(line.Region) + ")")
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("📅 <b>%s</b> — %s\n", telegram.EscapeHTML(dayLabel), now.Format("02.01.2006")))
	b.WriteString("──────────────\n")

	if len(entries) == 0 {
		b.WriteString("⚠️ Bugün için tarife bilgisi bulunamadı.\n")
	} else {
		for _, entry := range entries {
			b.WriteString(formatScheduleLine(entry))
			b.WriteString("\n")
		}
	}

	b.WriteString("──────────────\n")
	b.WriteString("🔁 Diğer günler için menüden yeniden hat seçebilirsin.")
	return b.String()
}

// formatScheduleLine renders one departure. Out-of-service entries get a
// warning treatment; late departures and annotated ones get their own
// markers so a glance distinguishes them.
func formatScheduleLine(entry domain.ScheduleEntry) string {
	normTitle := normalizeScheduleKeyword(entry.Title)
	outOfService := strings.Contains(normTitle, "servisdis")

	emoji := "🚌"
	switch {
	case outOfService:
		emoji = "🚫"
	case strings.Contains(normTitle, "gec"):
		emoji = "⏰"
	case entry.Note != "":
		emoji = "📍"
	}

	parts := []string{emoji + " <b>" + telegram.EscapeHTML(entry.Time) + "</b>"}
	if entry.Title != "" {
		if outOfService {
			parts = append(parts, "<b>⚠️ "+telegram.EscapeHTML(entry.Title)+"</b>")
		} else {
			parts = append(parts, telegram.EscapeHTML(entry.Title))
		}
	}
	if outOfService {
		parts = append(parts, "<b>⚠️ Servis Dışı</b>")
	} else if entry.Note != "" {
		parts = append(parts, telegram.EscapeHTML(entry.Note))
	}
	if entry.Desc != "" {
		parts = append(parts, "("+telegram.EscapeHTML(entry.Desc)+" dk)")
	}

	lineText := strings.Join(parts, " – ")
	if outOfService {
		lineText += "\n   <b>⚠️ Servis Dışı:</b> Araç bu saat için serviste değildir."
	}
	return lineText
}

// normalizeScheduleKeyword folds Turkish letters to ASCII, lowercases, and
// strips everything outside [a-z0-9], so day labels and titles compare
// regardless of the upstream's spelling ("Hafta İçi", "HAFTAICI", ...).
func normalizeScheduleKeyword(s string) string {
	var b strings.Builder
	for _, r := range turkishLower(s) {
		switch r {
		case 'ı':
			r = 'i'
		case 'ş':
			r = 's'
		case 'ğ':
			r = 'g'
		case 'ç':
			r = 'c'
		case 'ö':
			r = 'o'
		case 'ü':
			r = 'u'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// turkishLower lowercases with Turkish casing rules, so "İ" folds to "i"
// and "I" to "ı" instead of the ASCII mapping.
func turkishLower(s string) string {
	return strings.ToLowerSpecial(unicode.TurkishCase, s)
}

// splitMessage cuts text into chunks no longer than limit, preferring to
// break at newlines. Timetables for busy lines overflow one Telegram
// message otherwise.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > limit {
		cut := strings.LastIndex(remaining[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(remaining[:cut], "\n"))
		remaining = strings.TrimLeft(remaining[cut:], "\n")
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}
