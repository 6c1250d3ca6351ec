package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/handler"
	"github.com/denizatli/hattakip/internal/service"
	"github.com/denizatli/hattakip/internal/telegram"
)

// ---- mocks -------------------------------------------------------------------

// mockTracker is a hand-written test double for handler.TrackingServicer.
type mockTracker struct {
	start   func(ctx context.Context, chatID int64, token string) error
	stop    func(ctx context.Context, chatID int64, token string) error
	runLoop func(ctx context.Context, chatID int64, token string) error
}

func (m *mockTracker) Start(ctx context.Context, chatID int64, token string) error {
	return m.start(ctx, chatID, token)
}
func (m *mockTracker) Stop(ctx context.Context, chatID int64, token string) error {
	return m.stop(ctx, chatID, token)
}
func (m *mockTracker) RunLoop(ctx context.Context, chatID int64, token string) error {
	return m.runLoop(ctx, chatID, token)
}

var _ handler.TrackingServicer = (*mockTracker)(nil)

// mockPlanner is a hand-written test double for handler.PlannerServicer.
type mockPlanner struct {
	plan func(ctx context.Context, origin, dest domain.Coordinates) ([]service.PlanOption, error)
}

func (m *mockPlanner) Plan(ctx context.Context, origin, dest domain.Coordinates) ([]service.PlanOption, error) {
	return m.plan(ctx, origin, dest)
}

var _ handler.PlannerServicer = (*mockPlanner)(nil)

// mockPlaces is a hand-written test double for handler.PlaceServicer.
type mockPlaces struct {
	create     func(ctx context.Context, place domain.Place) (domain.Place, error)
	listByChat func(ctx context.Context, chatID int64) ([]domain.Place, error)
	delete     func(ctx context.Context, chatID int64, id uuid.UUID) error
}

func (m *mockPlaces) Create(ctx context.Context, place domain.Place) (domain.Place, error) {
	return m.create(ctx, place)
}
func (m *mockPlaces) ListByChat(ctx context.Context, chatID int64) ([]domain.Place, error) {
	return m.listByChat(ctx, chatID)
}
func (m *mockPlaces) Delete(ctx context.Context, chatID int64, id uuid.UUID) error {
	return m.delete(ctx, chatID, id)
}

var _ handler.PlaceServicer = (*mockPlaces)(nil)

// mockSchedule is a hand-written test double for handler.ScheduleServicer.
// Unset operations succeed silently, so tests only stub what they assert on.
type mockSchedule struct {
	refreshLines func(ctx context.Context) (int, error)
	sendMenu     func(ctx context.Context, chatID int64, page, messageID int) error
	sendSearch   func(ctx context.Context, chatID int64, query string, messageID int) error
	sendSchedule func(ctx context.Context, chatID int64, post string) error
}

func (m *mockSchedule) RefreshLines(ctx context.Context) (int, error) {
	if m.refreshLines == nil {
		return 0, nil
	}
	return m.refreshLines(ctx)
}
func (m *mockSchedule) SendMenu(ctx context.Context, chatID int64, page, messageID int) error {
	if m.sendMenu == nil {
		return nil
	}
	return m.sendMenu(ctx, chatID, page, messageID)
}
func (m *mockSchedule) SendSearch(ctx context.Context, chatID int64, query string, messageID int) error {
	if m.sendSearch == nil {
		return nil
	}
	return m.sendSearch(ctx, chatID, query, messageID)
}
func (m *mockSchedule) SendSchedule(ctx context.Context, chatID int64, post string) error {
	if m.sendSchedule == nil {
		return nil
	}
	return m.sendSchedule(ctx, chatID, post)
}

var _ handler.ScheduleServicer = (*mockSchedule)(nil)

// mockUsers is a hand-written test double for handler.UserServicer.
// Unset isRegistered treats every chat as registered.
type mockUsers struct {
	upsert       func(ctx context.Context, telegramID int64, name string) (domain.AuthorizedUser, bool, error)
	list         func(ctx context.Context) ([]domain.AuthorizedUser, error)
	delete       func(ctx context.Context, telegramID int64) error
	isRegistered func(ctx context.Context, chatID int64) (bool, error)
}

func (m *mockUsers) Upsert(ctx context.Context, telegramID int64, name string) (domain.AuthorizedUser, bool, error) {
	return m.upsert(ctx, telegramID, name)
}
func (m *mockUsers) List(ctx context.Context) ([]domain.AuthorizedUser, error) {
	return m.list(ctx)
}
func (m *mockUsers) Delete(ctx context.Context, telegramID int64) error {
	return m.delete(ctx, telegramID)
}
func (m *mockUsers) IsRegistered(ctx context.Context, chatID int64) (bool, error) {
	if m.isRegistered == nil {
		return true, nil
	}
	return m.isRegistered(ctx, chatID)
}

var _ handler.UserServicer = (*mockUsers)(nil)

// mockNotifier records outgoing Telegram calls.
type mockNotifier struct {
	sent      []string
	answers   []answeredCallback
	sendErr   error
	answerErr error
}

type answeredCallback struct {
	callbackID string
	text       string
	showAlert  bool
}

func (m *mockNotifier) SendMessage(_ context.Context, _ int64, text string, _ *telegram.InlineKeyboardMarkup) (int, error) {
	m.sent = append(m.sent, text)
	return len(m.sent), m.sendErr
}

func (m *mockNotifier) AnswerCallbackQuery(_ context.Context, callbackID, text string, showAlert bool) error {
	m.answers = append(m.answers, answeredCallback{callbackID: callbackID, text: text, showAlert: showAlert})
	return m.answerErr
}

var _ handler.Notifier = (*mockNotifier)(nil)

// ---- helpers -----------------------------------------------------------------

type serverMocks struct {
	tracker  *mockTracker
	planner  *mockPlanner
	places   *mockPlaces
	schedule *mockSchedule
	users    *mockUsers
	notifier *mockNotifier

	workerSecret string
}

// newTestRouter wires a Server with the given mocks into a chi router, the
// same way main.go does.
func newTestRouter(m serverMocks) http.Handler {
	if m.tracker == nil {
		m.tracker = &mockTracker{}
	}
	if m.planner == nil {
		m.planner = &mockPlanner{}
	}
	if m.places == nil {
		m.places = &mockPlaces{}
	}
	if m.schedule == nil {
		m.schedule = &mockSchedule{}
	}
	if m.users == nil {
		m.users = &mockUsers{}
	}
	if m.notifier == nil {
		m.notifier = &mockNotifier{}
	}
	srv := handler.NewServer(handler.ServerConfig{
		Tracker:      m.tracker,
		Planner:      m.planner,
		Places:       m.places,
		Schedule:     m.schedule,
		Users:        m.users,
		Notifier:     m.notifier,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		WorkerSecret: m.workerSecret,
	})
	r := chi.NewRouter()
	srv.Routes(r)
	return r
}
