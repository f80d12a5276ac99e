package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"

	"github.com/terminal-bench/pizzaplanner/internal/alerts"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8009"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	dbURL := os.Getenv("DATABASE_URL")

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            natsURL,
		Name:           "alerts-service",
		ReconnectWait:  time.Second,
		MaxReconnects:  5,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	alertsEngine := alerts.NewEngine(db, natsClient)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/api/v1/alerts", func(c *gin.Context) {
		var req struct {
			OrderID   string  `json:"order_id"`
			Condition string  `json:"condition"` // "above", "below", "crosses"
			DelayMin  float64 `json:"delay_min"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		watch, err := alertsEngine.CreateWatch(c.Request.Context(), req.OrderID, req.Condition, req.DelayMin)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, watch)
	})

	r.GET("/api/v1/alerts/:order_id", func(c *gin.Context) {
		orderID := c.Param("order_id")

		watches, err := alertsEngine.GetWatches(c.Request.Context(), orderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, watches)
	})

	r.DELETE("/api/v1/alerts/:watch_id", func(c *gin.Context) {
		watchID := c.Param("watch_id")
		orderID := c.GetHeader("X-Order-ID")

		err := alertsEngine.DeleteWatch(c.Request.Context(), watchID, orderID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// Subscribe to delay readings relayed from the planner for watch checking
	if err := natsClient.Subscribe("order.delay.*", func(msg *nats.Msg) {
		alertsEngine.OnDelayReading(msg.Subject, msg.Data)
	}); err != nil {
		log.Printf("failed to subscribe to delay readings: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	alertsEngine.Start(ctx)

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

	cancel()
	alertsEngine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	db.Close()
}
