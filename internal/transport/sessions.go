package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scent-cart/internal/bus"
	"scent-cart/internal/state"
	"scent-cart/internal/storage"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "scent_session"
)

type sessionContextKey string

const sessionIDKey sessionContextKey = "session_id"

// sessionIdleTTL bounds how long an untouched session store is kept. The
// persisted substrate outlives eviction; only the transient in-memory view
// (sticky cart format, original stored elements, applied promo) is rebuilt
// on the next request, and the promo is transient by design anyway.
const sessionIdleTTL = 30 * time.Minute

// Sessions hands out the per-session state store. A store is created on
// first use and held while the session stays active; stores idle past the
// TTL are closed and dropped so the registry cannot grow without bound.
type Sessions struct {
	kv       storage.KV
	notifier bus.Notifier
	logger   *zap.Logger
	idleTTL  time.Duration

	mu     sync.Mutex
	stores map[string]*sessionEntry
}

type sessionEntry struct {
	store    *state.Store
	lastSeen time.Time
}

// NewSessions creates a session registry on the given substrate.
func NewSessions(kv storage.KV, notifier bus.Notifier, logger *zap.Logger) *Sessions {
	return &Sessions{
		kv:       kv,
		notifier: notifier,
		logger:   logger,
		idleTTL:  sessionIdleTTL,
		stores:   make(map[string]*sessionEntry),
	}
}

// Store returns the state store for a session id, creating it if needed.
// Every call also sweeps out stores whose session has gone idle.
func (s *Sessions) Store(sessionID string) *state.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.evictIdle(now)

	e, ok := s.stores[sessionID]
	if !ok {
		e = &sessionEntry{store: state.New(s.kv, s.notifier, s.logger, sessionID)}
		s.stores[sessionID] = e
	}
	e.lastSeen = now
	return e.store
}

// evictIdle closes and drops stores untouched for longer than the idle TTL.
// Callers must hold s.mu.
func (s *Sessions) evictIdle(now time.Time) {
	for id, e := range s.stores {
		if now.Sub(e.lastSeen) > s.idleTTL {
			e.store.Close()
			delete(s.stores, id)
			s.logger.Debug("Evicted idle session store", zap.String("session_id", id))
		}
	}
}

// Middleware resolves the session id from the X-Session-ID header, then the
// session cookie, minting a fresh id when neither is present. The id is
// echoed on the response so clients can persist it.
func (s *Sessions) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(sessionHeader)
			if id == "" {
				if c, err := r.Cookie(sessionCookie); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				s.logger.Debug("New session", zap.String("session_id", id))
			}

			w.Header().Set(sessionHeader, id)
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), sessionIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID extracts the resolved session id from the request context.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// storeFor is the handler-side shortcut from request to session store.
func (s *Sessions) storeFor(r *http.Request) *state.Store {
	return s.Store(SessionID(r.Context()))
}
