package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/pizzaplanner/internal/fleet"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8011"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            natsURL,
		Name:           "fleet-service",
		ReconnectWait:  time.Second,
		MaxReconnects:  5,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	tracker := fleet.NewTracker(natsClient)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/api/v1/fleet/:fleet_id/routes", func(c *gin.Context) {
		fleetID, err := uuid.Parse(c.Param("fleet_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fleet id"})
			return
		}

		var req struct {
			CourierID   string `json:"courier_id"`
			BoxCapacity string `json:"box_capacity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		capacity, err := decimal.NewFromString(req.BoxCapacity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid box_capacity"})
			return
		}

		route, err := tracker.OpenRoute(c.Request.Context(), fleetID, req.CourierID, capacity)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, route)
	})

	r.GET("/api/v1/fleet/:fleet_id/routes", func(c *gin.Context) {
		fleetID, err := uuid.Parse(c.Param("fleet_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fleet id"})
			return
		}
		c.JSON(http.StatusOK, tracker.GetRoutes(fleetID))
	})

	r.PUT("/api/v1/fleet/:fleet_id/routes/:courier_id", func(c *gin.Context) {
		fleetID, err := uuid.Parse(c.Param("fleet_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fleet id"})
			return
		}
		courierID := c.Param("courier_id")

		var req struct {
			BoxDelta   string `json:"box_delta"`
			OrderDelta int    `json:"order_delta"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		boxDelta, err := decimal.NewFromString(req.BoxDelta)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid box_delta"})
			return
		}

		route, err := tracker.AdjustLoad(c.Request.Context(), fleetID, courierID, boxDelta, req.OrderDelta)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, route)
	})

	r.DELETE("/api/v1/fleet/:fleet_id/routes/:courier_id", func(c *gin.Context) {
		fleetID, err := uuid.Parse(c.Param("fleet_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fleet id"})
			return
		}
		courierID := c.Param("courier_id")

		route, err := tracker.CloseRoute(c.Request.Context(), fleetID, courierID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, route)
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
