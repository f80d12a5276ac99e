package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/terminal-bench/pizzaplanner/internal/sessions"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8013"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	dbURL := os.Getenv("DATABASE_URL")
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            natsURL,
		Name:           "sessions-service",
		ReconnectWait:  time.Second,
		MaxReconnects:  5,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	manager := sessions.NewManager(db, natsClient, redisURL)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/api/v1/sessions/:fleet_id", func(c *gin.Context) {
		fleetID := c.Param("fleet_id")
		session, err := manager.GetSession(c.Request.Context(), fleetID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, session)
	})

	r.GET("/api/v1/sessions/:fleet_id/trend", func(c *gin.Context) {
		fleetID := c.Param("fleet_id")
		period := c.DefaultQuery("period", "1d")

		trend, err := manager.GetTrend(c.Request.Context(), fleetID, period)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, trend)
	})

	r.GET("/api/v1/sessions/:fleet_id/breakdown", func(c *gin.Context) {
		fleetID := c.Param("fleet_id")

		breakdown, err := manager.GetBreakdown(c.Request.Context(), fleetID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, breakdown)
	})

	r.GET("/api/v1/sessions/:fleet_id/history", func(c *gin.Context) {
		fleetID := c.Param("fleet_id")
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "30"))
		if err != nil || limit <= 0 {
			limit = 30
		}

		history, err := manager.GetHistory(c.Request.Context(), fleetID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, history)
	})

	r.DELETE("/api/v1/sessions/:fleet_id/cache", func(c *gin.Context) {
		fleetID := c.Param("fleet_id")
		manager.InvalidateCache(fleetID)
		c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
}
