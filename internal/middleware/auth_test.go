package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/careview/backend/internal/auth"
	"github.com/careview/backend/internal/cache"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authFixture struct {
	sessions *auth.SessionService
	cache    *cache.Cache
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	memory := cache.NewMemoryStore()
	t.Cleanup(func() { _ = memory.Close() })
	c := cache.New(memory, time.Hour)

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret"})
	require.NoError(t, err)
	sessions, err := auth.NewSessionService(c, tokens, auth.SessionConfig{})
	require.NoError(t, err)

	return &authFixture{sessions: sessions, cache: c}
}

func (f *authFixture) login(t *testing.T, userID, role string) string {
	t.Helper()

	token, _, err := f.sessions.CreateSession(context.Background(), auth.User{
		ID:   userID,
		Role: role,
	}, auth.CreateOptions{})
	require.NoError(t, err)
	return token
}

func perform(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return performRequest(router, req)
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthRequiresToken(t *testing.T) {
	f := newAuthFixture(t)

	router := gin.New()
	router.GET("/protected", Auth(f.sessions, AuthOptions{Required: true}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := perform(router, http.MethodGet, "/protected", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTH_TOKEN_MISSING", decodeBody(t, rec)["code"])
}

func TestAuthOptionalPassesAnonymously(t *testing.T) {
	f := newAuthFixture(t)

	router := gin.New()
	router.GET("/open", Auth(f.sessions, AuthOptions{Required: false}), func(c *gin.Context) {
		_, ok := IdentityFrom(c)
		require.False(t, ok)
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/open", "").Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	f := newAuthFixture(t)

	router := gin.New()
	// Even optional routes reject a token that is present but bad.
	router.GET("/open", Auth(f.sessions, AuthOptions{Required: false}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := perform(router, http.MethodGet, "/open", "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTH_TOKEN_INVALID", decodeBody(t, rec)["code"])
}

func TestAuthRejectsDeletedSessionToken(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t, "u1", "PATIENT")
	require.Equal(t, 1, f.sessions.DeleteUserSessions(context.Background(), "u1"))

	router := gin.New()
	router.GET("/protected", Auth(f.sessions, AuthOptions{Required: true}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := perform(router, http.MethodGet, "/protected", token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTH_TOKEN_INVALID", decodeBody(t, rec)["code"])
}

func TestAuthEnforcesRoles(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t, "u1", "PATIENT")

	router := gin.New()
	router.GET("/admin", Auth(f.sessions, AuthOptions{Required: true, Roles: []string{"ADMIN"}}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := perform(router, http.MethodGet, "/admin", token)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "AUTH_INSUFFICIENT_PERMISSIONS", body["code"])
	require.Equal(t, []interface{}{"ADMIN"}, body["requiredRoles"])
	require.Equal(t, "PATIENT", body["userRole"])
}

func TestAuthAttachesIdentity(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t, "u1", "DOCTOR")

	router := gin.New()
	router.GET("/me", Auth(f.sessions, AuthOptions{Required: true, Roles: []string{"DOCTOR", "ADMIN"}}), func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		require.True(t, ok)
		require.Equal(t, "u1", identity.User.UserID)
		require.True(t, identity.HasRole("DOCTOR"))
		require.True(t, identity.HasAnyRole("ADMIN", "DOCTOR"))
		require.False(t, identity.HasAllRoles("DOCTOR", "ADMIN"))
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/me", token).Code)
}

func TestAuthRefreshSlidesActivity(t *testing.T) {
	f := newAuthFixture(t)

	token, session, err := f.sessions.CreateSession(context.Background(), auth.User{
		ID:   "u1",
		Role: "PATIENT",
	}, auth.CreateOptions{})
	require.NoError(t, err)
	before := f.sessions.GetSession(context.Background(), session.ID).LastActivity

	router := gin.New()
	router.GET("/ping", Auth(f.sessions, AuthOptions{Required: true, Refresh: true}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/ping", token).Code)

	after := f.sessions.GetSession(context.Background(), session.ID).LastActivity
	require.True(t, after.After(before), "refresh must advance last activity")
}

func TestOwnership(t *testing.T) {
	f := newAuthFixture(t)

	router := gin.New()
	router.GET("/users/:userId/records",
		Auth(f.sessions, AuthOptions{Required: true}),
		Ownership("userId", "id"),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	patient := f.login(t, "u1", "PATIENT")
	admin := f.login(t, "a1", "ADMIN")

	require.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/users/u1/records", patient).Code)

	rec := perform(router, http.MethodGet, "/users/u2/records", patient)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "AUTH_RESOURCE_ACCESS_DENIED", decodeBody(t, rec)["code"])

	// Administrators bypass ownership entirely.
	require.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/users/u2/records", admin).Code)
}

func TestOwnershipRequiresIdentity(t *testing.T) {
	router := gin.New()
	router.GET("/users/:id", Ownership("id", "id"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := perform(router, http.MethodGet, "/users/u1", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTH_REQUIRED", decodeBody(t, rec)["code"])
}
