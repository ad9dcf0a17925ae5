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

	"github.com/Marnel8/tracesys-sub003/internal/attendance"
	"github.com/Marnel8/tracesys-sub003/internal/auth"
	"github.com/Marnel8/tracesys-sub003/internal/capture"
	"github.com/Marnel8/tracesys-sub003/internal/cloudinary"
	"github.com/Marnel8/tracesys-sub003/internal/config"
	"github.com/Marnel8/tracesys-sub003/internal/faceclient"
	"github.com/Marnel8/tracesys-sub003/internal/geocode"
	"github.com/Marnel8/tracesys-sub003/internal/httpapi"
	"github.com/Marnel8/tracesys-sub003/internal/practicum"
	"github.com/Marnel8/tracesys-sub003/internal/queue"
	"github.com/Marnel8/tracesys-sub003/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	att := attendance.NewService(attendance.NewRepository(db.Client), attendance.Schedule{
		MorningStart:   cfg.Schedule.MorningStart,
		MorningEnd:     cfg.Schedule.MorningEnd,
		AfternoonStart: cfg.Schedule.AfternoonStart,
		AfternoonEnd:   cfg.Schedule.AfternoonEnd,
		Grace:          cfg.Schedule.Grace,
	})
	practicums := practicum.NewRepository(db.Client)
	authRepo := auth.NewRepository(db.Client)

	faces := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	geocoder := geocode.New(cfg.GeocodeBaseURL, redisClient.Client, cfg.GeocodeCacheTTL)
	captures := capture.NewManager(&httpapi.RemoteDevices{Faces: faces}, geocoder)

	var cdn *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdn = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured, clock photos will be dropped")
	}

	r := httpapi.New(cfg, att, practicums, authRepo, captures, cdn, q, db, redisClient).Router()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
