package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/settleops/internal/api"
	"github.com/punchamoorthee/settleops/internal/config"
	"github.com/punchamoorthee/settleops/internal/idempotency"
	"github.com/punchamoorthee/settleops/internal/processor"
	"github.com/punchamoorthee/settleops/internal/readiness"
	"github.com/punchamoorthee/settleops/internal/scheduler"
	"github.com/punchamoorthee/settleops/internal/store"
	"github.com/punchamoorthee/settleops/internal/verifier"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := store.NewStore(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	// Initialize Layers
	coordinator := idempotency.NewCoordinator(idempotency.NewRedisCache(redisClient))
	ledger := verifier.NewHorizonClient(cfg.VerifierURL)
	proc := processor.NewProcessor(db, db, ledger)
	state := readiness.New(cfg.DrainTimeout)

	handler := api.NewHandler(db, proc, state)
	router := api.NewRouter(handler, coordinator, state)

	// Background batch processing
	jobCtx, stopJob := context.WithCancel(context.Background())
	job := scheduler.New(db, proc, cfg.ProcessInterval)
	go job.Run(jobCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Shutdown sequencing: stop intake, wait out the drain window, then
	// shut the listener down and stop background work.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	state.StartDrain()
	state.WaitForDrain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	stopJob()
	log.Printf("server stopped")
}
