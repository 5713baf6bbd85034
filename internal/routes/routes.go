package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prpm-dev/registry/internal/handlers"
	"github.com/prpm-dev/registry/internal/middleware"
)

// CORSMiddleware allows the storefront origin to call the API with the
// Authorization header.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers, corsOrigin string) *gin.Engine {
	router := gin.Default()
	router.Use(CORSMiddleware(corsOrigin))

	v1 := router.Group("/v1")
	{
		// --- Public routes ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		v1.POST("/register", h.Register)
		v1.POST("/login", h.Login)

		v1.GET("/packages/search", h.SearchPackages)
		v1.GET("/packages/:slug", h.GetPackageBySlug)

		v1.GET("/plans", h.GetPlans)

		// One free run per anonymous identity; no auth.
		v1.POST("/playground/anonymous-run", h.AnonymousRunPlayground)

		// Stripe calls this; verified by signature, not by JWT.
		v1.POST("/billing/webhook", h.StripeWebhook)

		// --- Protected routes (login required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware())
		{
			auth.POST("/packages", h.CreatePackage)

			auth.POST("/playground/estimate", h.EstimatePlaygroundRun)
			auth.POST("/playground/run", h.RunPlayground)
			auth.GET("/playground/sessions", h.ListSessions)
			auth.GET("/playground/sessions/:id", h.GetSession)
			auth.DELETE("/playground/sessions/:id", h.DeleteSession)

			auth.GET("/credits", h.GetMyCredits)
			auth.GET("/credits/history", h.GetCreditHistory)

			auth.POST("/billing/checkout", h.CreateCheckout)
		}
	}

	return router
}
