package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/careview/backend/internal/cache"
	"github.com/careview/backend/pkg/crypto"
	"github.com/careview/backend/pkg/logger"
	"github.com/careview/backend/pkg/metrics"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"

	// DefaultSessionTTL is the cache lifetime of a freshly created session.
	DefaultSessionTTL = 24 * time.Hour

	// Logical inactivity windows enforced by CleanupExpired, independent of
	// the cache TTL.
	maxInactivity         = 24 * time.Hour
	maxInactivityRemember = 7 * 24 * time.Hour
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	DefaultTTL time.Duration
	Clock      func() time.Time
}

// SessionService owns the session lifecycle: opaque IDs in the cache fronted
// by signed tokens, a per-user index of live session IDs, and the periodic
// logical-expiry sweep.
//
// Cache failures never surface as errors from the read/update/delete paths;
// they degrade to "not found" / "did not take effect" results.
type SessionService struct {
	cache      *cache.Cache
	tokens     *TokenService
	defaultTTL time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// NewSessionService constructs a session registry over the supplied cache.
func NewSessionService(c *cache.Cache, tokens *TokenService, cfg SessionConfig) (*SessionService, error) {
	if c == nil {
		return nil, errors.New("session service: cache is required")
	}
	if tokens == nil {
		return nil, errors.New("session service: token service is required")
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		cache:      c,
		tokens:     tokens,
		defaultTTL: ttl,
		now:        clock,
		log:        logger.WithModule("sessions"),
	}, nil
}

// CreateSession builds a session for the user, stores it with the requested
// TTL, appends its ID to the user's session index, and returns a signed token
// expiring together with the session.
//
// The index is rewritten with the TTL of this session, so its lifetime tracks
// only the most recently created session. The index append is a plain
// read-modify-write; concurrent logins for one user can race on it.
func (s *SessionService) CreateSession(ctx context.Context, user User, opts CreateOptions) (string, *Session, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", nil, errors.New("session service: user id is required")
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	id, err := crypto.NewSessionID()
	if err != nil {
		return "", nil, fmt.Errorf("session service: generate id: %w", err)
	}

	now := s.now()
	session := &Session{
		ID:           id,
		UserID:       user.ID,
		Role:         user.Role,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		CreatedAt:    now,
		LastActivity: now,
		RememberMe:   opts.RememberMe,
	}
	if len(opts.AdditionalData) > 0 {
		session.Data = make(map[string]interface{}, len(opts.AdditionalData))
		for k, v := range opts.AdditionalData {
			session.Data[k] = v
		}
	}

	if !s.cache.Set(ctx, sessionKeyPrefix+id, session, ttl) {
		return "", nil, errors.New("session service: store session")
	}

	ids := s.UserSessions(ctx, user.ID)
	ids = append(ids, id)
	s.cache.Set(ctx, userSessionsKeyPrefix+user.ID, ids, ttl)

	token, err := s.tokens.Issue(id, user.ID, ttl)
	if err != nil {
		return "", nil, fmt.Errorf("session service: issue token: %w", err)
	}

	metrics.ActiveSessions.Inc()

	return token, session, nil
}

// GetSession returns the session stored under id, or nil when absent.
func (s *SessionService) GetSession(ctx context.Context, id string) *Session {
	if id == "" {
		return nil
	}

	var session Session
	if !s.cache.Get(ctx, sessionKeyPrefix+id, &session) {
		return nil
	}
	return &session
}

// UpdateSession shallow-merges fields into the session's data bag and stamps
// last activity. Returns false when the session is absent.
//
// The rewrite uses the cache's default TTL rather than the remaining one, so
// a generic update resets the entry's lifetime to that default.
func (s *SessionService) UpdateSession(ctx context.Context, id string, fields map[string]interface{}) bool {
	session := s.GetSession(ctx, id)
	if session == nil {
		return false
	}

	if len(fields) > 0 {
		if session.Data == nil {
			session.Data = make(map[string]interface{}, len(fields))
		}
		for k, v := range fields {
			session.Data[k] = v
		}
	}
	session.LastActivity = s.now()

	return s.cache.Set(ctx, sessionKeyPrefix+id, session, 0)
}

// DeleteSession removes the session and prunes its ID from the owning user's
// index. Returns false when the session was not present.
func (s *SessionService) DeleteSession(ctx context.Context, id string) bool {
	session := s.GetSession(ctx, id)
	if session == nil {
		return false
	}

	s.cache.Delete(ctx, sessionKeyPrefix+id)

	ids := s.UserSessions(ctx, session.UserID)
	pruned := ids[:0]
	for _, sid := range ids {
		if sid != id {
			pruned = append(pruned, sid)
		}
	}
	s.cache.Set(ctx, userSessionsKeyPrefix+session.UserID, pruned, 0)

	metrics.ActiveSessions.Dec()

	return true
}

// RefreshSession stamps last activity and rewrites the session with a fresh
// TTL, implementing sliding expiration. A ttl of zero uses the registry
// default. Identity fields are never touched.
func (s *SessionService) RefreshSession(ctx context.Context, id string, ttl time.Duration) bool {
	session := s.GetSession(ctx, id)
	if session == nil {
		return false
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	session.LastActivity = s.now()

	return s.cache.Set(ctx, sessionKeyPrefix+id, session, ttl)
}

// UserSessions returns the user's session-ID index in insertion order. IDs of
// sessions that have since expired may still be present until the cleanup
// sweep prunes them.
func (s *SessionService) UserSessions(ctx context.Context, userID string) []string {
	var ids []string
	if !s.cache.Get(ctx, userSessionsKeyPrefix+userID, &ids) {
		return nil
	}
	return ids
}

// DeleteUserSessions deletes every session in the user's index, clears the
// index, and returns the number of session entries actually removed.
func (s *SessionService) DeleteUserSessions(ctx context.Context, userID string) int {
	ids := s.UserSessions(ctx, userID)

	deleted := 0
	for _, id := range ids {
		removed, err := s.cache.Store().Delete(ctx, sessionKeyPrefix+id)
		if err != nil {
			s.log.Error("delete session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		deleted += int(removed)
	}

	s.cache.Delete(ctx, userSessionsKeyPrefix+userID)

	if deleted > 0 {
		metrics.ActiveSessions.Sub(float64(deleted))
	}

	return deleted
}

// CleanupExpired scans every session key and deletes sessions idle longer
// than 24 hours (7 days with the remember-me flag), regardless of their cache
// TTL. Deletion goes through DeleteSession, which also prunes the owning
// user's index; this sweep is the only mechanism healing orphaned index
// entries. It is O(total sessions) and meant to run on a coarse schedule.
func (s *SessionService) CleanupExpired(ctx context.Context) (int, error) {
	keys, err := s.cache.Store().Keys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("session service: enumerate sessions: %w", err)
	}

	now := s.now()
	cleaned := 0
	for _, key := range keys {
		id := strings.TrimPrefix(key, sessionKeyPrefix)
		session := s.GetSession(ctx, id)
		if session == nil {
			continue
		}

		window := maxInactivity
		if session.RememberMe {
			window = maxInactivityRemember
		}

		if now.Sub(session.LastActivity) > window {
			if s.DeleteSession(ctx, id) {
				cleaned++
			}
		}
	}

	if cleaned > 0 {
		s.log.Info("expired sessions cleaned", zap.Int("count", cleaned))
	}
	return cleaned, nil
}

// VerifyToken verifies the token's signature and expiry and resolves the
// session it names. Returns nil for a bad signature, an expired token, or a
// token whose session has been deleted since issuance.
func (s *SessionService) VerifyToken(ctx context.Context, token string) *AuthContext {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}

	session := s.GetSession(ctx, claims.SessionID)
	if session == nil {
		return nil
	}

	return &AuthContext{
		User:      session,
		SessionID: claims.SessionID,
		Token:     token,
	}
}
