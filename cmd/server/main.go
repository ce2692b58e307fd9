package main

import (
	"context"
	"log"
	"net/http"

	webAdapter "retail-backoffice/internal/adapters/web"
	"retail-backoffice/internal/app"
	"retail-backoffice/internal/cache"
	"retail-backoffice/internal/config"
	"retail-backoffice/internal/core"
	"retail-backoffice/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	var summaries cache.SummaryCache = cache.NoopSummaryCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisCache.Close()
		summaries = redisCache
	} else {
		log.Println("Warning: REDIS_ADDR is not set, summary caching disabled")
	}

	userService := core.NewUserService(pool)
	productService := core.NewProductService(pool)
	supplierService := core.NewSupplierService(pool)
	purchaseService := core.NewPurchaseService(pool)
	saleService := core.NewSaleService(pool, userService, loc)
	reportingService := core.NewReportingService(pool, loc)

	svc := app.NewAppService(
		userService, productService, supplierService,
		purchaseService, saleService, reportingService,
		summaries, cfg.SummaryTTL(), loc,
	)

	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret)

	log.Printf("server starting on %s", cfg.Address())
	if err := http.ListenAndServe(cfg.Address(), handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
