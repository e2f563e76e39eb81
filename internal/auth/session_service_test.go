package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careview/backend/internal/cache"
)

type sessionFixture struct {
	svc   *SessionService
	store *cache.MemoryStore
	now   *time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tokens, err := NewTokenService(TokenConfig{Secret: "test-secret", Clock: clock})
	require.NoError(t, err)

	svc, err := NewSessionService(cache.New(store, time.Hour), tokens, SessionConfig{Clock: clock})
	require.NoError(t, err)

	return &sessionFixture{svc: svc, store: store, now: &now}
}

func testUser(id string) User {
	return User{
		ID:        id,
		Role:      "PATIENT",
		Email:     id + "@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestCreateSessionVerifyRoundTrip(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	token, session, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{TTL: time.Hour})
	require.NoError(t, err)
	require.Len(t, session.ID, 64)

	auth := f.svc.VerifyToken(ctx, token)
	require.NotNil(t, auth)
	require.Equal(t, "u1", auth.User.UserID)
	require.Equal(t, session.ID, auth.SessionID)
}

func TestDeleteSessionInvalidatesToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	token, session, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{TTL: time.Hour})
	require.NoError(t, err)

	require.True(t, f.svc.DeleteSession(ctx, session.ID))
	require.Nil(t, f.svc.GetSession(ctx, session.ID))
	require.Nil(t, f.svc.VerifyToken(ctx, token), "token surviving session deletion must be inert")

	// Second delete reports the session as already gone.
	require.False(t, f.svc.DeleteSession(ctx, session.ID))
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	f := newSessionFixture(t)

	require.Nil(t, f.svc.VerifyToken(context.Background(), "not-a-token"))
	require.Nil(t, f.svc.VerifyToken(context.Background(), ""))
}

func TestRefreshSessionPreservesIdentity(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, session, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{})
	require.NoError(t, err)
	before := session.LastActivity

	*f.now = f.now.Add(10 * time.Minute)
	require.True(t, f.svc.RefreshSession(ctx, session.ID, 0))

	refreshed := f.svc.GetSession(ctx, session.ID)
	require.NotNil(t, refreshed)
	require.Equal(t, "u1", refreshed.UserID)
	require.Equal(t, "PATIENT", refreshed.Role)
	require.True(t, !refreshed.LastActivity.Before(before), "last activity must advance")

	require.False(t, f.svc.RefreshSession(ctx, "missing", 0))
}

func TestUpdateSessionMergesData(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, session, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{
		AdditionalData: map[string]interface{}{"device": "web"},
	})
	require.NoError(t, err)

	require.True(t, f.svc.UpdateSession(ctx, session.ID, map[string]interface{}{
		"locale": "en-GB",
	}))

	updated := f.svc.GetSession(ctx, session.ID)
	require.NotNil(t, updated)
	require.Equal(t, "web", updated.Data["device"])
	require.Equal(t, "en-GB", updated.Data["locale"])

	require.False(t, f.svc.UpdateSession(ctx, "missing", nil))
}

func TestUserSessionsIndex(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, s1, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{})
	require.NoError(t, err)
	_, s2, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{})
	require.NoError(t, err)

	ids := f.svc.UserSessions(ctx, "u1")
	require.Equal(t, []string{s1.ID, s2.ID}, ids, "index keeps insertion order")

	require.True(t, f.svc.DeleteSession(ctx, s1.ID))
	require.Equal(t, []string{s2.ID}, f.svc.UserSessions(ctx, "u1"))
}

func TestDeleteUserSessions(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{})
		require.NoError(t, err)
	}
	_, other, err := f.svc.CreateSession(ctx, testUser("u2"), CreateOptions{})
	require.NoError(t, err)

	require.Equal(t, 3, f.svc.DeleteUserSessions(ctx, "u1"))
	require.Empty(t, f.svc.UserSessions(ctx, "u1"))

	// Unrelated users keep their sessions.
	require.NotNil(t, f.svc.GetSession(ctx, other.ID))

	require.Zero(t, f.svc.DeleteUserSessions(ctx, "u1"))
}

func TestCleanupExpiredHonoursRememberMe(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, stale, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{TTL: 30 * 24 * time.Hour})
	require.NoError(t, err)
	_, remembered, err := f.svc.CreateSession(ctx, testUser("u2"), CreateOptions{
		TTL:        30 * 24 * time.Hour,
		RememberMe: true,
	})
	require.NoError(t, err)

	*f.now = f.now.Add(25 * time.Hour)

	cleaned, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cleaned)

	require.Nil(t, f.svc.GetSession(ctx, stale.ID), "idle session past 24h must be swept")
	require.NotNil(t, f.svc.GetSession(ctx, remembered.ID), "remember-me session is kept for 7 days")
	require.Empty(t, f.svc.UserSessions(ctx, "u1"), "sweep prunes the index")
}

func TestCleanupExpiredSweepsRememberMeAfterSevenDays(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, remembered, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{
		TTL:        30 * 24 * time.Hour,
		RememberMe: true,
	})
	require.NoError(t, err)

	*f.now = f.now.Add(8 * 24 * time.Hour)

	cleaned, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cleaned)
	require.Nil(t, f.svc.GetSession(ctx, remembered.ID))
}

func TestSessionTTLExpiryEndToEnd(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	// The store clock drives TTL eviction; keep it aligned with the service clock.
	f.store.SetClock(func() time.Time { return *f.now })

	token, _, err := f.svc.CreateSession(ctx, testUser("u1"), CreateOptions{TTL: time.Hour})
	require.NoError(t, err)

	*f.now = f.now.Add(2 * time.Hour)
	require.Nil(t, f.svc.VerifyToken(ctx, token), "cache TTL eviction invalidates the token")
}

func TestCreateSessionRequiresUserID(t *testing.T) {
	f := newSessionFixture(t)

	_, _, err := f.svc.CreateSession(context.Background(), User{}, CreateOptions{})
	require.Error(t, err)
}
