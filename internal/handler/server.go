// Package handler implements the HTTP surface of the bot: the Telegram
// webhook, the internal worker and refresh endpoints, the JSON
// planning/places/users API, and the health check. All handlers are methods
// on Server, split into domain-specific files, sharing one struct for
// dependency access.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/service"
	"github.com/denizatli/hattakip/internal/telegram"
)

// TrackingServicer defines the tracking operations the webhook and worker
// handlers depend on. Defining the interface here (in the consumer package)
// lets handler tests inject a mock without a database or live loops.
type TrackingServicer interface {
	Start(ctx context.Context, chatID int64, token string) error
	Stop(ctx context.Context, chatID int64, token string) error
	RunLoop(ctx context.Context, chatID int64, token string) error
}

// PlannerServicer defines the route planning operation the API depends on.
type PlannerServicer interface {
	Plan(ctx context.Context, origin, dest domain.Coordinates) ([]service.PlanOption, error)
}

// PlaceServicer defines the saved-place operations the API depends on.
type PlaceServicer interface {
	Create(ctx context.Context, place domain.Place) (domain.Place, error)
	ListByChat(ctx context.Context, chatID int64) ([]domain.Place, error)
	Delete(ctx context.Context, chatID int64, id uuid.UUID) error
}

// ScheduleServicer defines the departure-times operations the webhook and
// refresh handlers depend on.
type ScheduleServicer interface {
	RefreshLines(ctx context.Context) (int, error)
	SendMenu(ctx context.Context, chatID int64, page int, messageID int) error
	SendSearch(ctx context.Context, chatID int64, query string, messageID int) error
	SendSchedule(ctx context.Context, chatID int64, post string) error
}

// UserServicer defines the access-list operations the webhook and admin API
// depend on.
type UserServicer interface {
	Upsert(ctx context.Context, telegramID int64, name string) (domain.AuthorizedUser, bool, error)
	List(ctx context.Context) ([]domain.AuthorizedUser, error)
	Delete(ctx context.Context, telegramID int64) error
	IsRegistered(ctx context.Context, chatID int64) (bool, error)
}

// Notifier is the slice of the Telegram client the webhook handler needs.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (int, error)
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
}

// ServerConfig collects the Server's dependencies.
type ServerConfig struct {
	Tracker  TrackingServicer
	Planner  PlannerServicer
	Places   PlaceServicer
	Schedule ScheduleServicer
	Users    UserServicer
	Notifier Notifier
	Logger   *slog.Logger

	// WorkerSecret guards the /internal endpoints. Empty disables the check
	// (tests); production wiring always sets it.
	WorkerSecret string
}

// Server holds every handler's dependencies.
type Server struct {
	tracker      TrackingServicer
	planner      PlannerServicer
	places       PlaceServicer
	schedule     ScheduleServicer
	users        UserServicer
	notifier     Notifier
	logger       *slog.Logger
	workerSecret string
}

// NewServer constructs the Server from the given config.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		tracker:      cfg.Tracker,
		planner:      cfg.Planner,
		places:       cfg.Places,
		schedule:     cfg.Schedule,
		users:        cfg.Users,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger,
		workerSecret: cfg.WorkerSecret,
	}
}

// Routes registers every endpoint on the given router. apiMiddleware (CORS,
// body-size limits) applies to the /api subtree only; webhook and internal
// endpoints stay outside it.
func (s *Server) Routes(r chi.Router, apiMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/healthz", s.GetHealth)
	r.Post("/webhook", s.PostWebhook)
	r.Get("/internal/track-worker", s.GetTrackWorker)
	r.Post("/internal/refresh-lines", s.PostRefreshLines)

	r.Route("/api", func(api chi.Router) {
		api.Use(apiMiddleware...)
		api.Post("/route-plans", s.PostRoutePlans)
		api.Post("/places", s.PostPlace)
		api.Get("/places", s.ListPlaces)
		api.Delete("/places/{id}", s.DeletePlace)
		api.Post("/users", s.PostUser)
		api.Get("/users", s.ListUsers)
		api.Delete("/users/{telegramID}", s.DeleteUser)
	})
}

// authorizeInternal checks the shared secret on /internal endpoints. An
// empty configured secret disables the check.
func (s *Server) authorizeInternal(w http.ResponseWriter, r *http.Request) bool {
	if s.workerSecret == "" {
		return true
	}
	if r.URL.Query().Get("key") != s.workerSecret {
		writeError(w, http.StatusForbidden, "forbidden", "invalid key")
		return false
	}
	return true
}
