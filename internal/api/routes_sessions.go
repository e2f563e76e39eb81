package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careview/backend/internal/auth"
	"github.com/careview/backend/internal/middleware"
	"github.com/careview/backend/pkg/errors"
	"github.com/careview/backend/pkg/response"
)

func registerSessionRoutes(api *gin.RouterGroup, sessions *auth.SessionService) {
	requireAuth := middleware.Auth(sessions, middleware.AuthOptions{Required: true})

	group := api.Group("/sessions")
	group.Use(requireAuth)
	{
		group.GET("", listSessions(sessions))
		group.POST("/logout", logout(sessions))
		group.POST("/logout-all", logoutAll(sessions))
	}
}

// listSessions returns the IDs of every live session belonging to the caller.
func listSessions(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.IdentityFrom(c)

		ids := sessions.UserSessions(c.Request.Context(), identity.User.UserID)
		response.JSON(c, http.StatusOK, gin.H{
			"sessions": ids,
			"current":  identity.SessionID,
		})
	}
}

// logout deletes the session behind the presented token.
func logout(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.IdentityFrom(c)

		if !sessions.DeleteSession(c.Request.Context(), identity.SessionID) {
			response.Error(c, errors.ErrNotFound)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"success": true})
	}
}

// logoutAll deletes every session of the calling user across devices.
func logoutAll(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.IdentityFrom(c)

		deleted := sessions.DeleteUserSessions(c.Request.Context(), identity.User.UserID)
		response.JSON(c, http.StatusOK, gin.H{
			"success": true,
			"deleted": deleted,
		})
	}
}
