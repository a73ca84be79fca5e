package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"jaudi-finance-backend/internal/common/middleware"
	"jaudi-finance-backend/internal/security"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth          *AuthHandler
	Transactions  *TransactionHandler
	KYC           *KYCHandler
	Sync          *SyncHandler
	Rates         *RatesHandler
	Notifications *NotificationHandler
}

// NewRouter builds the gin engine: envelope middleware, CORS, public auth
// routes and session-guarded API routes.
func NewRouter(h Handlers, signer *security.Signer, origin string, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	h.Auth.RegisterRoutes(v1)
	h.Rates.RegisterRoutes(v1)

	authed := v1.Group("")
	authed.Use(middleware.RequireSession(signer))
	h.Auth.RegisterProtectedRoutes(authed)
	h.Transactions.RegisterRoutes(authed)
	h.KYC.RegisterRoutes(authed)
	h.Sync.RegisterRoutes(authed)
	h.Notifications.RegisterRoutes(authed)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "jaudi-finance-backend",
		})
	})

	return router
}
