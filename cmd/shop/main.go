package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"go-shop/internal/cache"
	"go-shop/internal/catalog"
	shophttp "go-shop/internal/http"
	"go-shop/internal/publisher"
	"go-shop/internal/repository"
	"go-shop/internal/service"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	DB              repository.Credentials
}

func loadConfig() *Config {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		log.Fatalf("invalid DB_PORT: %v", err)
	}
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		DB: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "shop"),
			Password:          getEnv("DB_PASSWORD", "shop"),
			DBName:            getEnv("DB_NAME", "shopdb"),
			MigrationsDirPath: getEnv("MIGRATIONS_DIR", "internal/repository/migrations"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := loadConfig()

	repo, err := repository.NewRepository(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(&cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Connected to postgres at %s:%d", cfg.DB.Host, cfg.DB.Port)

	ctx := context.Background()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Redis ping failed, cache will run degraded: %v", err)
	}

	cartCache := cache.NewBreakerCache(cache.NewRedisCache(redisClient))
	productCatalog := catalog.NewPostgresCatalog(repo.DB())

	cartService := service.NewCartService(repo, productCatalog, cartCache)
	orderService := service.NewOrderService(repo, repo, repo, cartCache)

	pollerCtx, cancelPoller := context.WithCancel(ctx)
	defer cancelPoller()
	poller := publisher.NewOutboxPoller(repo, cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)

	router := shophttp.NewRouter(cartService, orderService, cfg.RequestTimeout)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "shop"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Shop backend listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	cancelPoller()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("server exited")
}
