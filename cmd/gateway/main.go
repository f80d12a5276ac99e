package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/terminal-bench/pizzaplanner/internal/auth"
	"github.com/terminal-bench/pizzaplanner/internal/coordinator"
	"github.com/terminal-bench/pizzaplanner/internal/gateway"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
	"github.com/terminal-bench/pizzaplanner/pkg/metrics"
)

var globalConfig *Config

func init() {
	if globalConfig == nil {
		// Using defaults - might not match environment
	}
}

type Config struct {
	Port            string
	NATSUrl         string
	DatabaseURL     string
	JWTSecret       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	EtcdEndpoints   string
	InfluxURL       string
	InfluxToken     string
	InfluxOrg       string
	InfluxBucket    string
}

func loadConfig() *Config {
	return &Config{
		Port:            getEnv("PORT", "8000"),
		NATSUrl:         getEnv("NATS_URL", "nats://localhost:4222"),
		DatabaseURL:     getEnv("DATABASE_URL", "postgres://localhost/pizzaplanner?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		RateLimitMax:    100,
		RateLimitWindow: time.Minute,
		EtcdEndpoints:   getEnv("ETCD_ENDPOINTS", ""),
		InfluxURL:       getEnv("INFLUXDB_URL", ""),
		InfluxToken:     getEnv("INFLUXDB_TOKEN", ""),
		InfluxOrg:       getEnv("INFLUXDB_ORG", "pizzaplanner"),
		InfluxBucket:    getEnv("INFLUXDB_BUCKET", "solves"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func main() {
	cfg := loadConfig()
	globalConfig = cfg

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	msgClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATSUrl,
		Name:           "gateway",
		ReconnectWait:  time.Second,
		MaxReconnects:  60,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer msgClient.Close()

	authSvc := auth.NewService(db, cfg.JWTSecret)

	gw := gateway.NewGateway(gateway.Config{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
	}, msgClient, authSvc)

	if cfg.EtcdEndpoints != "" {
		coord, err := coordinator.NewCoordinator(coordinator.Config{
			Endpoints: strings.Split(cfg.EtcdEndpoints, ","),
		})
		if err != nil {
			log.Printf("Coordinator unavailable, running without cross-replica solve lock: %v", err)
		} else {
			defer coord.Close()
			gw.SetCoordinator(coord)
		}
	}

	if cfg.InfluxURL != "" {
		rec := metrics.NewRecorder(metrics.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		defer rec.Close()
		gw.SetMetricsRecorder(rec)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Printf("Gateway starting on port %s", cfg.Port)
		if err := gw.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start gateway: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Gateway shutdown error: %v", err)
	}

	log.Println("Gateway stopped")
}
