package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/terminal-bench/pizzaplanner/internal/matrixfeed"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8012"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            natsURL,
		Name:           "matrixfeed-service",
		ReconnectWait:  time.Second,
		MaxReconnects:  5,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	feed := matrixfeed.NewFeed(natsClient)
	ctx, cancel := context.WithCancel(context.Background())
	if err := feed.Start(ctx); err != nil {
		log.Fatalf("Failed to start matrix feed: %v", err)
	}

	wsHandler := matrixfeed.NewWebSocketHandler(feed)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/api/v1/matrix/:region_id", func(c *gin.Context) {
		regionID := c.Param("region_id")
		snapshot, exists := feed.GetSnapshot(regionID)
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "no matrix cached for region"})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	})

	r.GET("/ws/matrix", func(c *gin.Context) {
		regions := strings.Split(c.Query("regions"), ",")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to upgrade connection"})
			return
		}

		wsHandler.ServeWS(c.Request.Context(), conn, regions)
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

	cancel()
	feed.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
}
