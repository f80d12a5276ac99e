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

	"github.com/terminal-bench/pizzaplanner/internal/orders"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8002"
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
		Name:           "orders-service",
		ReconnectWait:  time.Second,
		MaxReconnects:  5,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	ordersService := orders.NewService(db, natsClient)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/api/v1/orders", func(c *gin.Context) {
		var req struct {
			FleetID             string `json:"fleet_id"`
			RegionID            string `json:"region_id"`
			BoxCount            int    `json:"box_count"`
			ReadyMin            int    `json:"ready_min"`
			DeadlineMin         int    `json:"deadline_min"`
			RequiresCertificate bool   `json:"requires_certificate"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		order, err := ordersService.Submit(c.Request.Context(), &orders.SubmitRequest{
			FleetID:             req.FleetID,
			RegionID:            req.RegionID,
			BoxCount:            req.BoxCount,
			ReadyMin:            req.ReadyMin,
			DeadlineMin:         req.DeadlineMin,
			RequiresCertificate: req.RequiresCertificate,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, order)
	})

	r.GET("/api/v1/orders/:order_id", func(c *gin.Context) {
		orderID := c.Param("order_id")
		order, err := ordersService.Get(c.Request.Context(), orderID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.GET("/api/v1/orders", func(c *gin.Context) {
		fleetID := c.Query("fleet_id")
		status := c.DefaultQuery("status", "pending")
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 {
			limit = 50
		}

		ordersList, err := ordersService.List(c.Request.Context(), fleetID, status, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, ordersList)
	})

	r.DELETE("/api/v1/orders/:order_id", func(c *gin.Context) {
		orderID := c.Param("order_id")
		fleetID := c.GetHeader("X-Fleet-ID")

		err := ordersService.Cancel(c.Request.Context(), orderID, fleetID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
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

	db.Close()
}
