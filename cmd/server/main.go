package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberline/commerce-pulse/internal/aggregate"
	"github.com/emberline/commerce-pulse/internal/api"
	"github.com/emberline/commerce-pulse/internal/cache"
	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/ga4"
	"github.com/emberline/commerce-pulse/internal/googleads"
	"github.com/emberline/commerce-pulse/internal/instagram"
	"github.com/emberline/commerce-pulse/internal/klaviyo"
	"github.com/emberline/commerce-pulse/internal/metaads"
	"github.com/emberline/commerce-pulse/internal/schedule"
	"github.com/emberline/commerce-pulse/internal/shopify"
	"github.com/emberline/commerce-pulse/internal/snapads"
	"github.com/emberline/commerce-pulse/internal/store"
	"github.com/emberline/commerce-pulse/internal/syncer"
	"github.com/emberline/commerce-pulse/internal/tiktokads"
)

// checkPortAvailable verifies that the target port is not already in use,
// so a stale process never silently swallows the traffic.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.Open(ctx, cfg.Database)
	cancel()
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	err = st.EnsureSchema(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	log.Println("Database schema ready")

	// Platform adapters. A platform with incomplete credentials is left
	// out of the sync set rather than failing the boot.
	var shopifySrc syncer.ShopifySource
	shopifyClient := shopify.NewClient(cfg.Shopify, st)
	if err := cfg.Shopify.Validate(); err != nil {
		log.Printf("Shopify disabled: %v", err)
	} else {
		if err := cfg.GA4.Validate(); err == nil {
			if ga4Client, err := ga4.NewClient(cfg.GA4); err != nil {
				log.Printf("GA4 traffic fallback disabled: %v", err)
			} else {
				shopifyClient.SetTrafficFallback(ga4Client)
				log.Println("GA4 traffic fallback enabled")
			}
		}
		shopifySrc = shopifyClient
	}

	ads := map[domain.Platform]syncer.AdSource{}
	if err := cfg.Meta.Validate(); err != nil {
		log.Printf("Meta ads disabled: %v", err)
	} else {
		ads[domain.PlatformMeta] = metaads.NewClient(cfg.Meta)
	}
	if err := cfg.GoogleAds.Validate(); err != nil {
		log.Printf("Google ads disabled: %v", err)
	} else {
		ads[domain.PlatformGoogle] = googleads.NewClient(cfg.GoogleAds)
	}
	if err := cfg.TikTok.Validate(); err != nil {
		log.Printf("TikTok ads disabled: %v", err)
	} else {
		ads[domain.PlatformTikTok] = tiktokads.NewClient(cfg.TikTok)
	}
	if err := cfg.Snapchat.Validate(); err != nil {
		log.Printf("Snapchat ads disabled: %v", err)
	} else {
		ads[domain.PlatformSnapchat] = snapads.NewClient(cfg.Snapchat)
	}

	var emailSrc syncer.EmailSource
	if err := cfg.Klaviyo.Validate(); err != nil {
		log.Printf("Klaviyo disabled: %v", err)
	} else {
		emailSrc = klaviyo.NewClient(cfg.Klaviyo)
	}

	var socialSrc syncer.SocialSource
	if err := cfg.Instagram.Validate(); err != nil {
		log.Printf("Instagram disabled: %v", err)
	} else {
		socialSrc = instagram.NewClient(cfg.Instagram)
	}

	runner := syncer.New(st, shopifySrc, ads, emailSrc, socialSrc,
		cfg.Sync.BatchSize, cfg.Sync.RequestDelay())
	engine := aggregate.New(st)

	metricsCache, err := cache.New(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	if metricsCache != nil {
		defer metricsCache.Close()
		log.Printf("Metrics cache enabled (ttl %s)", cfg.Redis.TTL())
	}

	handlers := api.NewHandlers(cfg, engine, runner, st, metricsCache, st.DB())
	server := api.NewServer(handlers)

	var sched *schedule.Scheduler
	if cfg.Sync.CronEnabled {
		sched, err = schedule.New(runner, metricsCache, cfg.Sync.CronSpec)
		if err != nil {
			log.Fatalf("Failed to configure scheduler: %v", err)
		}
		sched.Start()
		log.Printf("Scheduler running (%s)", cfg.Sync.CronSpec)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down")

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
