package main // Entry point package

import (
	"context"   // Shutdown deadline and consumer lifetime
	"errors"    // Distinguish a clean server close
	"log"       // Logging library
	"net/http"  // http.ErrServerClosed
	"os"        // Signal types
	"os/signal" // Stop on SIGINT/SIGTERM
	"syscall"   // SIGTERM
	"time"      // Shutdown timeout

	"github.com/iliyamo/item-registry/internal/config"     // Internal config loader
	"github.com/iliyamo/item-registry/internal/handler"    // EventPublisher interface
	"github.com/iliyamo/item-registry/internal/queue"      // Item event consumer
	"github.com/iliyamo/item-registry/internal/repository" // In-memory item store
	"github.com/iliyamo/item-registry/internal/router"     // Internal router setup
	queue_publisher "github.com/iliyamo/item-registry/internal/service"
)

func main() {
	config.LoadDotEnv()                     // Pick up a local .env when present
	cfg := config.Load()                    // Load environment config
	cacheCfg := config.LoadCacheConfig()    // Response cache settings
	rateCfg := config.LoadRateLimitConfig() // Token bucket settings
	eventsCfg := config.LoadEventsConfig()  // RabbitMQ settings

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := config.NewRedisClient(ctx) // nil, nil when Redis is not configured
	if err != nil {
		log.Printf("redis: %v", err)
	}
	if rdb == nil && (cacheCfg.Enabled || rateCfg.Enabled) {
		log.Printf("redis unavailable; response cache and rate limiting disabled")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var events handler.EventPublisher
	if eventsCfg.Enabled {
		events = queue_publisher.New(eventsCfg.URL, eventsCfg.Queue)
	}

	policy := repository.FixedID
	if cfg.IDPolicy == config.IDPolicySequential {
		policy = repository.SequentialID
	}

	e := router.NewServer(router.Deps{
		Config:    cfg,
		Cache:     cacheCfg,
		RateLimit: rateCfg,
		Items:     repository.NewItemRepo(policy),
		Redis:     rdb,
		Events:    events,
	})

	if eventsCfg.Consumer {
		go func() {
			if err := queue.StartItemConsumer(ctx, eventsCfg); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("item consumer stopped: %v", err)
			}
		}()
	}

	addr := ":" + cfg.Port                                                            // Address string with port
	log.Printf("listening on %s (env=%s, id_policy=%s)", addr, cfg.Env, cfg.IDPolicy) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) { // Start HTTP server
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
