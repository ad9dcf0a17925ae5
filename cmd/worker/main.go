package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Marnel8/tracesys-sub003/internal/attendance"
	"github.com/Marnel8/tracesys-sub003/internal/config"
	"github.com/Marnel8/tracesys-sub003/internal/faceclient"
	"github.com/Marnel8/tracesys-sub003/internal/queue"
	"github.com/Marnel8/tracesys-sub003/internal/store"
)

// Worker consumes photo-verify messages, re-checks the stored selfie
// against the face service, and stamps the event's photo status.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	repo := attendance.NewRepository(db.Client)
	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)

	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			log.Printf("WARNING: Face service not available: %v", err)
			log.Println("Worker will retry verification when events arrive")
		} else {
			log.Println("Face service connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypePhotoVerify {
			continue
		}

		id := string(msg.Body)
		log.Printf("verifying event %s", id)

		evt, err := repo.GetEvent(ctx, id)
		if err != nil {
			log.Printf("fetch event %s failed: %v", id, err)
			continue
		}
		if evt.PhotoURL == nil {
			log.Printf("event %s has no photo, skipping", id)
			continue
		}

		result, err := face.DetectURL(ctx, *evt.PhotoURL)
		if err != nil {
			log.Printf("face detect failed for %s: %v", id, err)
			_ = repo.SetEventPhotoStatus(ctx, id, attendance.PhotoFailed)
			continue
		}

		status := attendance.PhotoUnverified
		if result.Present() {
			status = attendance.PhotoVerified
		}
		log.Printf("event %s: %d face(s), confidence %.2f -> %s", id, result.FacesDetected, result.Confidence, status)
		_ = repo.SetEventPhotoStatus(ctx, id, status)

		time.Sleep(10 * time.Millisecond)
	}

	log.Println("worker stopped")
}
