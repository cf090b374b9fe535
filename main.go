package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/invoicely/config"
	"github.com/yourusername/invoicely/handlers"
	"github.com/yourusername/invoicely/logger"
	"github.com/yourusername/invoicely/middleware"
	"github.com/yourusername/invoicely/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logg.Sync()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logg.Fatalf("Failed to connect to database: %v", err)
	}

	// Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "invoicely-api",
		})
	})

	authHandler := handlers.NewAuthHandler(db, cfg)
	invoiceHandler := handlers.NewInvoiceHandler(services.NewInvoiceService(db, logg))

	// API routes
	api := router.Group("/api/v1")
	{
		// Auth endpoints
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)

		// Invoice endpoints, scoped to the authenticated owner
		authed := api.Group("", middleware.JwtAuthMiddleware(cfg))
		{
			authed.POST("/invoices", invoiceHandler.CreateInvoice)
			authed.GET("/invoices", invoiceHandler.ListInvoices)
			authed.GET("/invoices/:id", invoiceHandler.GetInvoice)
			authed.PUT("/invoices/:id", invoiceHandler.UpdateInvoice)
			authed.DELETE("/invoices/:id", invoiceHandler.DeleteInvoice)
			authed.GET("/invoices/:id/print", invoiceHandler.PrintInvoice)
		}
	}

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	logg.Infof("Starting Invoicely API server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		logg.Fatalf("Failed to start server: %v", err)
	}
}
