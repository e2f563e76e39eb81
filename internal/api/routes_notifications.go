package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/careview/backend/internal/auth"
	"github.com/careview/backend/internal/middleware"
	"github.com/careview/backend/internal/notifications"
	"github.com/careview/backend/pkg/errors"
	"github.com/careview/backend/pkg/response"
	"github.com/careview/backend/pkg/validator"
)

func registerNotificationRoutes(api *gin.RouterGroup, sessions *auth.SessionService, store *notifications.Store) {
	requireAuth := middleware.Auth(sessions, middleware.AuthOptions{Required: true})

	requireAdmin := middleware.Auth(sessions, middleware.AuthOptions{
		Required: true,
		Roles:    []string{middleware.RoleAdmin},
	})

	group := api.Group("/notifications")
	{
		group.GET("", requireAuth, listNotifications(store))
		group.GET("/unread-count", requireAuth, unreadCount(store))
		group.POST("/:id/read", requireAuth, markRead(store))
		group.POST("/read-all", requireAuth, markAllRead(store))
		group.DELETE("/:id", requireAuth, deleteNotification(store))

		group.POST("", requireAdmin, createNotification(store))
	}
}

type createNotificationRequest struct {
	UserID  string                 `json:"userId" validate:"required"`
	Title   string                 `json:"title" validate:"required,max=200"`
	Message string                 `json:"message" validate:"required,max=2000"`
	Type    string                 `json:"type" validate:"required,oneof=APPOINTMENT_REMINDER APPOINTMENT_CONFIRMED APPOINTMENT_CANCELLED NEW_MESSAGE PAYMENT_SUCCESS"`
	Data    map[string]interface{} `json:"data"`
}

// createNotification lets operators push a notification to any user; delivery
// to a live socket happens through the store's sinks.
func createNotification(store *notifications.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errors.NewBadRequest("invalid request body"))
			return
		}
		if err := validator.ValidateStruct(req); err != nil {
			response.Error(c, errors.NewBadRequest(err.Error()))
			return
		}

		created, err := store.Create(c.Request.Context(), req.UserID, req.Title,
			req.Message, notifications.Type(req.Type), req.Data)
		if err != nil {
			response.Error(c, errors.Wrap(err, "create notification"))
			return
		}
		response.JSON(c, http.StatusCreated, created)
	}
}

func listNotifications(store *notifications.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.IdentityFrom(c)

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		userID := identity.User.UserID
		items := store.List(c.Request.Context(), userID, limit, offset)
		if items == nil {
			items = []*notifications.Notification{}
		}

		response.JSON(c, http.StatusOK, gin.H{
			"notifications": items,
			"unreadCount":   store.UnreadCount(c.Request.Context(), userID),
		})
	}
}

func unreadCount(store *notifications.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.IdentityFrom(c)

		response.JSON(c, http.StatusOK, gin.H{
			"count": store.UnreadCount(c.Request.Context(), identity.User.UserID),
		})
	}
}

func markRead(store *notifications.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.IdentityFrom(c)

		if !store.MarkAsRead(c.Request.Context(), c.Param("id"), identity.User.UserID) {
			response.Error(c, errors.ErrNotFound)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"success": true})
	}
}

func markAllRead(store *notifications.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.IdentityFrom(c)

		updated := store.MarkAllAsRead(c.Request.Context(), identity.User.UserID)
		response.JSON(c, http.StatusOK, gin.H{
			"success": true,
			"updated": updated,
		})
	}
}

func deleteNotification(store *notifications.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.IdentityFrom(c)

		if !store.Delete(c.Request.Context(), c.Param("id"), identity.User.UserID) {
			response.Error(c, errors.ErrNotFound)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"success": true})
	}
}
