package main

import (
	"context"
	"docchain/internal/cache"
	"docchain/internal/config"
	"docchain/internal/db"
	"docchain/internal/document"
	"docchain/internal/ledger"
	"docchain/internal/middleware"
	"docchain/internal/storage"
	"docchain/internal/user"
	"docchain/internal/worker"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Seed database with initial data (for development)
	db.SeedData()

	// Initialize Redis cache
	appCache := cache.New(config.AppConfig.RedisAddress)
	defer appCache.Close()

	// Object storage for uploaded files
	blobs, err := storage.NewS3Store(context.Background(), config.AppConfig)
	if err != nil {
		log.Fatalf("error connecting to object storage %v", err)
	}

	ledgerClient := ledger.NewLedgerClient(config.AppConfig.LedgerAddress, config.AppConfig.LedgerSecret)

	// Background jobs (share-count reconcile, blob cleanup)
	pool := worker.NewWorkerPool(config.AppConfig.WorkerPoolSize)
	defer pool.Shutdown()

	// Initialize repository
	userRepo := user.NewRepository(db.AppDb)
	docRepo := document.NewRepository(db.AppDb)
	// Initialize service
	userService := user.NewService(userRepo)
	docService := document.NewService(docRepo, userService, blobs, ledgerClient, appCache, pool)
	// Initialize handler
	docHandler := document.NewHandler(docService)
	userHandler := user.NewHandler(userService)

	authMiddleware := &middleware.Auth{UserService: userService}

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)
	router.POST("/refresh", userHandler.RefreshToken)
	router.DELETE("/logout", authMiddleware.AuthMiddleWare(), userHandler.Logout)
	router.GET("/profile", authMiddleware.AuthMiddleWare(), userHandler.GetProfile)
	router.GET("/users", authMiddleware.AuthMiddleWare(), userHandler.SearchUsers)

	// Document routes
	router.GET("/documents", authMiddleware.AuthMiddleWare(), docHandler.ShowDocuments)
	router.GET("/documents/shared", authMiddleware.AuthMiddleWare(), docHandler.ShowSharedDocuments)
	router.POST("/documents/upload", authMiddleware.AuthMiddleWare(), docHandler.Upload)
	router.POST("/documents/bulk-delete", authMiddleware.AuthMiddleWare(), docHandler.BulkDelete)
	router.PUT("/documents/:id", authMiddleware.AuthMiddleWare(), docHandler.Update)
	router.DELETE("/documents/:id", authMiddleware.AuthMiddleWare(), docHandler.Delete)
	router.POST("/documents/:id/restore", authMiddleware.AuthMiddleWare(), docHandler.Restore)
	router.DELETE("/documents/:id/permanent", authMiddleware.AuthMiddleWare(), docHandler.PermanentDelete)
	router.POST("/documents/:id/verify", authMiddleware.AuthMiddleWare(), docHandler.Verify)
	router.GET("/documents/:id/proof", authMiddleware.AuthMiddleWare(), docHandler.Proof)
	router.GET("/documents/:id/shares", authMiddleware.AuthMiddleWare(), docHandler.ListShares)
	router.POST("/documents/:id/shares", authMiddleware.AuthMiddleWare(), docHandler.AddShare)
	router.DELETE("/documents/:id/shares/:userId", authMiddleware.AuthMiddleWare(), docHandler.RemoveShare)

	// Favorites
	router.POST("/favorites/:id", authMiddleware.AuthMiddleWare(), docHandler.AddFavorite)
	router.DELETE("/favorites/:id", authMiddleware.AuthMiddleWare(), docHandler.RemoveFavorite)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", serverPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	<-ctx.Done()
	log.Println("Server shutdown complete")
}
