package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careview/backend/internal/app"
	"github.com/careview/backend/internal/auth"
	"github.com/careview/backend/internal/cache"
	"github.com/careview/backend/internal/middleware"
	"github.com/careview/backend/internal/notifications"
	"github.com/careview/backend/internal/realtime"
)

// Dependencies carries the wired services the router exposes.
type Dependencies struct {
	Config        *app.Config
	Cache         *cache.Cache
	Sessions      *auth.SessionService
	Notifications *notifications.Store
	Hub           *realtime.Hub

	// GraphQL, when set, is mounted at POST /api/graphql behind the response
	// cache.
	GraphQL http.Handler
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache must be provided")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if deps.Notifications == nil {
		return nil, fmt.Errorf("notification store must be provided")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimit(deps.Cache,
		deps.Config.RateLimit.MaxRequests, deps.Config.RateLimit.Window))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerHealthRoutes(r, deps.Hub)
	registerWebsocketRoutes(r, deps.Hub)

	api := r.Group("/api")
	registerSessionRoutes(api, deps.Sessions)
	registerNotificationRoutes(api, deps.Sessions, deps.Notifications)

	if deps.GraphQL != nil {
		handlers := []gin.HandlerFunc{
			middleware.Auth(deps.Sessions, middleware.AuthOptions{Required: false}),
		}
		if deps.Config.GraphQLCache.Enabled {
			handlers = append(handlers, middleware.ResponseCache(deps.Cache, middleware.ResponseCacheOptions{
				DefaultTTL: deps.Config.GraphQLCache.DefaultTTL,
			}))
		}
		handlers = append(handlers, gin.WrapH(deps.GraphQL))
		api.POST("/graphql", handlers...)
	}

	return r, nil
}
