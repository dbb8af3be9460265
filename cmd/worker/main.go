package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"worksite-attendance/internal/config"
	"worksite-attendance/internal/embedjob"
	"worksite-attendance/internal/queue"
	"worksite-attendance/internal/store"
)

// Worker drains the redis enrollment queue and runs the embedding generator
// over each employee's photo directory. Deployments using the in-memory
// queue backend do this inside cmd/api and do not need this binary.
func main() {
	cfg := config.Load()
	if cfg.QueueBackend != "redis" {
		log.Fatal("worker requires QUEUE_BACKEND=redis; the memory backend processes jobs in-process")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis not reachable at %s; will keep polling", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	runner := embedjob.NewRunner(q, cfg.EmbedderCommand, cfg.EmbedTimeout, cfg.EmbedWorkers)

	log.Printf("worker started with %d worker(s), embedder: %v", cfg.EmbedWorkers, cfg.EmbedderCommand)
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("runner failed: %v", err)
	}
	log.Println("worker stopped")
}
