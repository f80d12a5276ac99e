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

	"github.com/terminal-bench/pizzaplanner/internal/capacity"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8010"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            natsURL,
		Name:           "capacity-service",
		ReconnectWait:  time.Second,
		MaxReconnects:  5,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	calc := capacity.NewCalculator(natsClient)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/api/v1/capacity/:fleet_id/metrics", func(c *gin.Context) {
		fleetID, err := uuid.Parse(c.Param("fleet_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fleet id"})
			return
		}

		metrics, err := calc.CalculateFleetMetrics(c.Request.Context(), fleetID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, metrics)
	})

	r.POST("/api/v1/capacity/:fleet_id/check", func(c *gin.Context) {
		fleetID, err := uuid.Parse(c.Param("fleet_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fleet id"})
			return
		}

		var req struct {
			AdditionalBoxes  int `json:"additional_boxes"`
			AdditionalOrders int `json:"additional_orders"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := calc.CheckBatchCapacity(c.Request.Context(), fleetID, req.AdditionalBoxes, req.AdditionalOrders); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.PUT("/api/v1/capacity/:fleet_id/load", func(c *gin.Context) {
		fleetID, err := uuid.Parse(c.Param("fleet_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fleet id"})
			return
		}

		var req struct {
			CourierID    string `json:"courier_id"`
			BoxCapacity  int    `json:"box_capacity"`
			BoxesLoaded  int    `json:"boxes_loaded"`
			OrdersLoaded int    `json:"orders_loaded"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		load := &capacity.CourierLoad{
			FleetID:      fleetID,
			CourierID:    req.CourierID,
			BoxCapacity:  req.BoxCapacity,
			BoxesLoaded:  req.BoxesLoaded,
			OrdersLoaded: req.OrdersLoaded,
		}
		if err := calc.UpdateLoad(c.Request.Context(), load); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
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
