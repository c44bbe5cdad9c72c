package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultInterval is the refresh cadence. It sits well under the
// server's one-hour access token lifetime so a tick always lands before
// expiry, with room for several failed attempts.
const DefaultInterval = 14 * time.Minute

// ErrTokenExpired is how an [API] implementation signals that the
// presented access token is expired but a refresh may still succeed.
var ErrTokenExpired = errors.New("token expired")

// ErrAlreadyStarted is returned by [Scheduler.Start] when the refresh
// loop is already running.
var ErrAlreadyStarted = errors.New("scheduler already started")

// API is the server surface the scheduler needs. Implementations
// typically wrap an HTTP client; errors decide whether the scheduler
// refreshes, retries, or gives the session up.
type API interface {
	// Refresh exchanges refreshToken for a fresh pair.
	Refresh(ctx context.Context, refreshToken string) (access, refresh string, err error)
	// Validate checks accessToken. Return [ErrTokenExpired] when the
	// token is expired; any other error counts as a dead session.
	Validate(ctx context.Context, accessToken string) error
}

// Config tunes the scheduler. The zero value is usable.
type Config struct {
	// Interval between refresh attempts. Zero means DefaultInterval.
	Interval time.Duration
	// RequestTimeout bounds each API call. Zero means 10 seconds.
	RequestTimeout time.Duration
	// OnLogout runs exactly once when the session dies, from the
	// scheduler's goroutine.
	OnLogout func()
}

// Scheduler owns a token pair and keeps it fresh in the background.
// Start it once; read the current pair with [Scheduler.Tokens].
type Scheduler struct {
	api    API
	config Config

	mu         sync.Mutex
	access     string
	refresh    string
	refreshing bool
	loggedOut  bool
	started    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewScheduler(api API, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Scheduler{
		api:    api,
		config: cfg,
	}
}

// Start installs the pair, settles the session state once up front, and
// launches the background refresh loop. The eager check covers the
// restart case: a stored access token may have expired while the
// process was down, in which case the refresh token can still rescue
// the session.
//
// Start is one-shot while the loop runs; a second call returns
// [ErrAlreadyStarted]. A Start that failed before launching the loop
// may be retried.
func (s *Scheduler) Start(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.access = access
	s.refresh = refresh
	s.loggedOut = false
	s.mu.Unlock()

	if err := s.settle(ctx, access); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(runCtx, done)
	return nil
}

// settle is Start's eager check: refresh an expired pair right away,
// otherwise confirm the access token with the server once.
func (s *Scheduler) settle(ctx context.Context, access string) error {
	if accessExpired(access) {
		return s.refreshNow(ctx)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	err := s.api.Validate(reqCtx, access)
	cancel()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenExpired):
		return s.refreshNow(ctx)
	default:
		s.logout()
		return err
	}
}

// Stop shuts the refresh loop down and waits for it to exit, including
// any refresh exchange in flight. Stopping does not log the session
// out; the tokens stay readable.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// Tokens returns the current pair.
func (s *Scheduler) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.refresh
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.refreshNow(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// refreshNow performs one refresh exchange. Any server-side failure ends
// the session: a refresh token the server rejects will not be accepted
// next tick either.
func (s *Scheduler) refreshNow(ctx context.Context) error {
	s.mu.Lock()
	if s.refreshing || s.loggedOut {
		s.mu.Unlock()
		return nil
	}
	s.refreshing = true
	refresh := s.refresh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	reqCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	access, next, err := s.api.Refresh(reqCtx, refresh)
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown, not a dead session.
			return err
		}
		s.logout()
		return err
	}

	s.mu.Lock()
	s.access = access
	s.refresh = next
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) logout() {
	s.mu.Lock()
	if s.loggedOut {
		s.mu.Unlock()
		return
	}
	s.loggedOut = true
	s.access = ""
	s.refresh = ""
	callback := s.config.OnLogout
	s.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// accessExpired inspects the token's exp claim without verifying the
// signature; only the server can do that. Anything unreadable is treated
// as expired so the refresh path decides.
func accessExpired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !time.Now().Before(claims.ExpiresAt.Time)
}
