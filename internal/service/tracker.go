// Package service implements business logic for the tracking pipeline:
// request lifecycle, session lifecycle, worker spawning, and the polling
// loop itself. Services depend on repo interfaces and on small consumer
// interfaces for the transit and Telegram clients, so tests can substitute
// hand-written mocks.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/metrics"
	"github.com/denizatli/hattakip/internal/repo"
	"github.com/denizatli/hattakip/internal/telegram"
)

// StopStatusFetcher is the slice of the transit client the tracking services
// need: live arrival data for one stop.
type StopStatusFetcher interface {
	StopStatus(ctx context.Context, stopID string) (any, error)
}

// Messenger is the slice of the Telegram client the tracking services need.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (int, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *telegram.InlineKeyboardMarkup) error
}

// WorkerSpawner launches the polling worker for a session.
type WorkerSpawner interface {
	Spawn(ctx context.Context, chatID int64, token string) error
	Release(ctx context.Context, token string) error
}

// TrackerConfig collects the dependencies and knobs for a Tracker.
// Zero-valued knobs get production defaults.
type TrackerConfig struct {
	Requests  repo.RequestRepo
	Sessions  repo.SessionRepo
	Spawner   WorkerSpawner
	Transit   StopStatusFetcher
	Messenger Messenger
	Metrics   *metrics.Collector
	Logger    *slog.Logger

	// PollInterval is the pause between loop iterations (default 30s).
	PollInterval time.Duration
	// MaxIterations caps the loop length (default 40, i.e. 20 minutes).
	MaxIterations int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Tracker implements the tracking lifecycle: creating and redeeming tracking
// requests, starting and stopping sessions, and running the polling loop.
type Tracker struct {
	requests  repo.RequestRepo
	sessions  repo.SessionRepo
	spawner   WorkerSpawner
	transit   StopStatusFetcher
	messenger Messenger
	metrics   *metrics.Collector
	logger    *slog.Logger

	now           func() time.Time
	pollInterval  time.Duration
	maxIterations int
}

// NewTracker constructs a Tracker from the given config.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 40
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	return &Tracker{
		requests:      cfg.Requests,
		sessions:      cfg.Sessions,
		spawner:       cfg.Spawner,
		transit:       cfg.Transit,
		messenger:     cfg.Messenger,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		now:           cfg.Now,
		pollInterval:  cfg.PollInterval,
		maxIterations: cfg.MaxIterations,
	}
}

// CreateRequest persists a tracking request and returns its token. Requests
// without a line code or boarding stop are rejected with
// domain.ErrInvalidRoute. Expired requests are purged opportunistically
// first; purge failures only log. Token collisions are retried with a fresh
// token.
func (t *Tracker) CreateRequest(ctx context.Context, req domain.TrackingRequest) (string, error) {
	if req.LineCode == "" || req.StopID == "" {
		return "", fmt.Errorf("service.Tracker.CreateRequest: %w", domain.ErrInvalidRoute)
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = t.now()
	}

	if _, err := t.requests.DeleteOlderThan(ctx, t.now().Add(-domain.RequestTTL)); err != nil {
		t.logger.Warn("purge expired tracking requests", "error", err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		token, err := newToken()
		if err != nil {
			return "", fmt.Errorf("service.Tracker.CreateRequest: %w", err)
		}
		req.Token = token

		err = t.requests.Create(ctx, req)
		if err == nil {
			return token, nil
		}
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		return "", fmt.Errorf("service.Tracker.CreateRequest: %w", err)
	}
	return "", fmt.Errorf("service.Tracker.CreateRequest: %w", domain.ErrConflict)
}

// LoadRequest fetches a request by token, enforcing the TTL lazily: an
// expired request is deleted on read and reported as domain.ErrExpired.
func (t *Tracker) LoadRequest(ctx context.Context, token string) (domain.TrackingRequest, error) {
	req, err := t.requests.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TrackingRequest{}, fmt.Errorf("service.Tracker.LoadRequest: %w", domain.ErrExpired)
		}
		return domain.TrackingRequest{}, fmt.Errorf("service.Tracker.LoadRequest: %w", err)
	}
	if req.ExpiredAt(t.now()) {
		if err := t.requests.Delete(ctx, token); err != nil {
			t.logger.Warn("delete expired tracking request", "token", token, "error", err)
		}
		return domain.TrackingRequest{}, fmt.Errorf("service.Tracker.LoadRequest: %w", domain.ErrExpired)
	}
	return req, nil
}

// Start redeems a tracking request and opens a session for it:
//
//  1. An existing session on the same line and stop is finalized first, so a
//     duplicate confirmation restarts tracking instead of stacking sessions.
//  2. If the chat is at the concurrency cap, the oldest session is evicted.
//  3. The initial status message is sent, the session persisted, the request
//     consumed, and the polling worker spawned. When spawning fails the loop
//     runs in-process so the user still gets updates.
//
// Returns domain.ErrExpired when the token is unknown or past its TTL.
func (t *Tracker) Start(ctx context.Context, chatID int64, token string) error {
	req, err := t.LoadRequest(ctx, token)
	if err != nil {
		return fmt.Errorf("service.Tracker.Start: %w", err)
	}

	sessions, err := t.sessions.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("service.Tracker.Start: %w", err)
	}
	for _, s := range sessions {
		if s.LineCode == req.LineCode && s.StopID == req.StopID {
			t.finalize(ctx, chatID, s.Token, "Bu hat için takip yeniden başlatıldı.", "restarted")
		}
	}

	sessions, err = t.sessions.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("service.Tracker.Start: %w", err)
	}
	if len(sessions) >= domain.MaxConcurrentSessions {
		if oldest, ok := oldestSession(sessions); ok {
			t.finalize(ctx, chatID, oldest.Token, "Maksimum takip limitine ulaşıldı; bu takip sonlandırıldı.", "evicted")
		}
		sessions, err = t.sessions.GetChat(ctx, chatID)
		if err != nil {
			return fmt.Errorf("service.Tracker.Start: %w", err)
		}
	}

	messageID, err := t.messenger.SendMessage(ctx, chatID, formatStartMessage(req), stopKeyboard(token))
	if err != nil {
		return fmt.Errorf("service.Tracker.Start: %w", err)
	}

	session := domain.TrackingSession{
		Token:        token,
		ChatID:       chatID,
		MessageID:    messageID,
		LineCode:     req.LineCode,
		LineDisplay:  req.LineDisplay,
		LineName:     req.LineName,
		StopID:       req.StopID,
		StopName:     req.StopName,
		DestStopName: req.DestStopName,
		StartedAt:    t.now(),
		Status:       domain.SessionStatusRunning,
	}
	sessions[token] = session
	if err := t.sessions.PutChat(ctx, chatID, sessions); err != nil {
		return fmt.Errorf("service.Tracker.Start: %w", err)
	}

	if err := t.requests.Delete(ctx, token); err != nil {
		t.logger.Warn("consume tracking request", "token", token, "error", err)
	}

	t.metrics.SessionsStarted.Inc()
	t.metrics.ActiveSessions.Inc()
	t.logger.Info("tracking session started",
		"chat_id", chatID, "token", token, "line", req.LineDisplay, "stop", req.StopID)

	if err := t.spawner.Spawn(ctx, chatID, token); err != nil {
		// No separate worker could be launched. Run the loop in-process so
		// the session is still served; the loop re-reads its session from
		// storage each iteration either way.
		t.metrics.SpawnFailures.Inc()
		t.logger.Warn("worker spawn failed, running loop in-process",
			"chat_id", chatID, "token", token, "error", err)
		go func() {
			if err := t.RunLoop(context.WithoutCancel(ctx), chatID, token); err != nil {
				t.logger.Error("in-process tracking loop", "token", token, "error", err)
			}
		}()
	}
	return nil
}

// Stop terminates a session at the user's request. Returns
// domain.ErrNotFound when the chat has no session for the token, so callers
// can tell the user the tracking already ended.
func (t *Tracker) Stop(ctx context.Context, chatID int64, token string) error {
	if !t.finalize(ctx, chatID, token, "Takip kullanıcı tarafından sonlandırıldı.", "user_stop") {
		return fmt.Errorf("service.Tracker.Stop: %w", domain.ErrNotFound)
	}
	return nil
}

// finalize removes a session and rewrites its status message with the final
// text, dropping the stop button. It is idempotent: a token with no session
// does nothing, so concurrent terminators cannot double-finalize. Reports
// whether a session was actually finalized.
func (t *Tracker) finalize(ctx context.Context, chatID int64, token, finalText, reason string) bool {
	sessions, err := t.sessions.GetChat(ctx, chatID)
	if err != nil {
		t.logger.Error("finalize: load sessions", "token", token, "error", err)
		return false
	}
	session, ok := sessions[token]
	if !ok {
		return false
	}

	if err := t.sessions.DeleteSession(ctx, chatID, token); err != nil {
		t.logger.Error("finalize: delete session", "token", token, "error", err)
		return false
	}

	text := formatFinalMessage(session, finalText)
	if err := t.messenger.EditMessageText(ctx, chatID, session.MessageID, text, telegram.NoButtons()); err != nil {
		t.logger.Warn("finalize: edit message", "token", token, "error", err)
	}

	t.metrics.ActiveSessions.Dec()
	t.metrics.SessionsFinalized.WithLabelValues(reason).Inc()
	t.logger.Info("tracking session finalized",
		"chat_id", chatID, "token", token, "reason", reason)
	return true
}

// oldestSession returns the session with the earliest start time. Ties break
// on token so the choice is stable.
func oldestSession(sessions map[string]domain.TrackingSession) (domain.TrackingSession, bool) {
	var (
		oldest domain.TrackingSession
		found  bool
	)
	for _, s := range sessions {
		if !found || s.StartedAt.Before(oldest.StartedAt) ||
			(s.StartedAt.Equal(oldest.StartedAt) && s.Token < oldest.Token) {
			oldest = s
			found = true
		}
	}
	return oldest, found
}

// newToken returns a fresh 8-character hex tracking token.
func newToken() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
