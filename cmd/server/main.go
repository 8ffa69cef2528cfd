package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"resaleledger/backend/internal/cache"
	"resaleledger/backend/internal/config"
	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/httpapi"
	"resaleledger/backend/internal/service"
	"resaleledger/backend/internal/store"
	"resaleledger/backend/internal/store/memory"
	pgstore "resaleledger/backend/internal/store/postgres"
	sqlitestore "resaleledger/backend/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("repository unavailable: %v", err)
	}

	stockCache, closeCache := openStockCache(ctx, cfg)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	svc := service.New(repo, stockCache, service.Options{
		StockTTL:    cfg.StockCacheTTL(),
		MonthLocale: cfg.MonthLocale,
		Location:    cfg.Location(),
		Reference: domain.ReferenceData{
			Accounts:       cfg.Accounts,
			ClubsAndStores: cfg.ClubsAndStores,
		},
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if cfg.BootstrapUsername != "" {
		created, err := auth.EnsureOwner(ctx, cfg.BootstrapUsername, cfg.BootstrapPassword)
		if err != nil {
			log.Fatalf("owner bootstrap failed: %v", err)
		}
		if created {
			log.Printf("owner account %q created", cfg.BootstrapUsername)
		}
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.LoginRate)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("resale ledger listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout(),
		map[string]gfshutdown.Operation{
			"resale-ledger": func(ctx context.Context) error {
				// Drain requests before the backends they use go away.
				errs := []error{server.Shutdown(ctx)}
				for _, closeFn := range closers {
					errs = append(errs, closeFn())
				}
				return errors.Join(errs...)
			},
		},
	)

	exitCode := <-wait
	log.Printf("server stopped with code %d", exitCode)
	os.Exit(exitCode)
}

// openRepository picks postgres when DATABASE_URL is set, then SQLite when
// SQLITE_PATH is set, and otherwise a seeded in-memory store.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, []func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		log.Println("repository: postgres")
		return pg, []func() error{pg.Close}, nil
	case cfg.SQLitePath != "":
		lite, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite unavailable at %s: %w", cfg.SQLitePath, err)
		}
		log.Printf("repository: sqlite (%s)", cfg.SQLitePath)
		return lite, []func() error{lite.Close}, nil
	}

	log.Println("repository: in-memory")
	return memory.NewSeeded(), nil, nil
}

// openStockCache falls back to the noop cache when redis is not configured
// or not reachable. Stock is always recomputable so the cache is optional.
func openStockCache(ctx context.Context, cfg config.Config) (cache.StockCache, func() error) {
	if cfg.RedisAddr == "" {
		log.Println("cache: noop")
		return cache.NoopStockCache{}, nil
	}

	redisCache := cache.NewRedisStockCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		log.Printf("redis unavailable (%v), using noop cache", err)
		_ = redisCache.Close()
		return cache.NoopStockCache{}, nil
	}
	log.Println("cache: redis")
	return redisCache, redisCache.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.BootstrapUsername != "" && len(cfg.BootstrapPassword) < 8 {
		return fmt.Errorf("BOOTSTRAP_PASSWORD must be at least 8 characters when BOOTSTRAP_USERNAME is set")
	}
	return nil
}
