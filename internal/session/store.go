package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/sitecheck/internal/metrics"
)

// Session is one browser's in-memory state.
type Session struct {
	ID  string
	Log *Log

	mu       sync.Mutex
	apiKey   string
	lastSeen time.Time
}

// APIKey returns the key entered by the inspector, if any.
func (s *Session) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

// SetAPIKey stores a key for the lifetime of the session.
func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store holds sessions keyed by cookie value. Sessions idle for longer than
// the TTL are removed by Sweep.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Load returns the session named by the request cookie, creating a new
// session (and setting the cookie) when none exists or it has expired.
func (s *Store) Load(w http.ResponseWriter, r *http.Request, secure bool) *Session {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if sess := s.get(cookie.Value); sess != nil {
			return sess
		}
	}

	sess := s.create()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     CookiePath,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Store) get(id string) *Session {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if now.Sub(sess.idleSince()) > s.ttl {
		delete(s.sessions, id)
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		return nil
	}
	sess.touch(now)
	return sess
}

func (s *Store) create() *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		Log:      NewLog(),
		lastSeen: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	return sess
}

// Len returns the number of sessions currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	return removed
}

// Run sweeps expired sessions every interval until ctx is done. A
// non-positive interval uses DefaultSweepInterval.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("session janitor started", "interval", interval, "ttl", s.ttl)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session janitor stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired sessions removed", "count", n, "remaining", s.Len())
			}
		}
	}
}
