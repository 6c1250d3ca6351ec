package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/repo"
)

// Trigger fires the external worker request for a session. Implementations
// decide what "launching a worker" means; the launcher only cares whether it
// could be fired.
type Trigger interface {
	Trigger(ctx context.Context, chatID int64, token string) error
}

// Launcher spawns polling workers, deduplicated through advisory locks: a
// fresh lock means a loop is already believed to be running and the spawn is
// a silent success. The lock is advisory only; loops tolerate duplicates by
// re-reading their session each iteration.
type Launcher struct {
	locks   repo.LockRepo
	trigger Trigger
	logger  *slog.Logger
	now     func() time.Time
}

// NewLauncher constructs a Launcher. A nil now defaults to time.Now.
func NewLauncher(locks repo.LockRepo, trigger Trigger, logger *slog.Logger, now func() time.Time) *Launcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{locks: locks, trigger: trigger, logger: logger, now: now}
}

// Spawn launches a worker for the session unless a fresh lock says one is
// already running. On trigger failure the lock is released and
// domain.ErrSpawn returned, so the caller can fall back to running the loop
// itself.
func (l *Launcher) Spawn(ctx context.Context, chatID int64, token string) error {
	lock, err := l.locks.Get(ctx, token)
	if err == nil && lock.FreshAt(l.now()) {
		return nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("service.Launcher.Spawn: %w", err)
	}

	if err := l.locks.Upsert(ctx, token, l.now()); err != nil {
		return fmt.Errorf("service.Launcher.Spawn: %w", err)
	}

	if err := l.trigger.Trigger(ctx, chatID, token); err != nil {
		if relErr := l.locks.Delete(ctx, token); relErr != nil {
			l.logger.Warn("release lock after failed trigger", "token", token, "error", relErr)
		}
		return fmt.Errorf("service.Launcher.Spawn: %v: %w", err, domain.ErrSpawn)
	}
	return nil
}

// Release drops the worker lock for a token. Loops call this on exit.
func (l *Launcher) Release(ctx context.Context, token string) error {
	if err := l.locks.Delete(ctx, token); err != nil {
		return fmt.Errorf("service.Launcher.Release: %w", err)
	}
	return nil
}

// HTTPTrigger launches workers by requesting the service's own worker
// endpoint. The worker runs the loop while handling the request, so the
// trigger never waits for it: the connect budget is tight and a timeout
// counts as a successful launch (the request was handed to the server).
type HTTPTrigger struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewHTTPTrigger constructs an HTTPTrigger against the service's own base
// URL, e.g. "http://127.0.0.1:8080". The secret authenticates the request
// against the worker endpoint; an empty secret sends no key.
func NewHTTPTrigger(baseURL, secret string) *HTTPTrigger {
	return &HTTPTrigger{
		baseURL: baseURL,
		secret:  secret,
		client: &http.Client{
			Timeout: 800 * time.Millisecond,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 300 * time.Millisecond}).DialContext,
			},
		},
	}
}

func (h *HTTPTrigger) Trigger(ctx context.Context, chatID int64, token string) error {
	q := url.Values{}
	q.Set("chat_id", strconv.FormatInt(chatID, 10))
	q.Set("token", token)
	if h.secret != "" {
		q.Set("key", h.secret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		h.baseURL+"/internal/track-worker?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("service.HTTPTrigger.Trigger: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			// The worker holds the connection open for the whole loop; not
			// hearing back within the budget means it started.
			return nil
		}
		return fmt.Errorf("service.HTTPTrigger.Trigger: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
