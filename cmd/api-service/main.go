package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stravawesome/api-service/internal/ai"
	"stravawesome/api-service/internal/checkout"
	"stravawesome/api-service/internal/config"
	"stravawesome/api-service/internal/httpapi"
	"stravawesome/api-service/internal/ratelimit"
	"stravawesome/api-service/internal/retry"
	"stravawesome/api-service/internal/store/postgres"
	"stravawesome/api-service/internal/strava"
	"stravawesome/api-service/internal/telemetry"
	"stravawesome/api-service/internal/throttle"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("stravawesome-api")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)

	limiter := ratelimit.New()
	limiter.StartSweeper(5 * time.Minute)
	defer limiter.Stop()

	queue := throttle.NewQueue(cfg.ThrottleSpacing)
	defer queue.Stop()

	client := strava.NewClient(strava.ClientConfig{
		BaseURL:      cfg.StravaBaseURL,
		RetryPolicy:  retry.NewPolicy(cfg.RetryMaxAttempts, cfg.RetryBaseDelay, 30*time.Second),
		Queue:        queue,
		DetailLimit:  cfg.DetailConcurrency,
		FetchTimeout: cfg.FetchTimeout,
	})
	tokens := strava.NewTokenManager(st, strava.TokenManagerConfig{
		TokenURL:     cfg.StravaTokenURL,
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
	})
	shared := strava.NewSharedService(client, tokens, cfg.ActivityCacheTTL)

	coach := ai.NewClient(ai.Config{
		Endpoint: cfg.AIEndpoint,
		APIKey:   cfg.AIAPIKey,
		Model:    cfg.AIModel,
	})
	payments := checkout.NewClient(checkout.Config{
		APIURL:        cfg.PolarAPIURL,
		APIKey:        cfg.PolarAPIKey,
		ProductID:     cfg.PolarProductID,
		SuccessURL:    cfg.PolarSuccessURL,
		WebhookSecret: cfg.PolarWebhookSecret,
	})

	handler := httpapi.NewHandler(st, shared, coach, payments, limiter, client.Usage)

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(handler.Routes()), "stravawesome-api")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("stravawesome-api listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
