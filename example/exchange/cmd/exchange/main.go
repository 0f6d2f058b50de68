package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kroma-labs/apiwrap-go/apiclient"
	"github.com/kroma-labs/apiwrap-go/example/exchange/internal/config"
	"github.com/kroma-labs/apiwrap-go/example/exchange/internal/shop"
	"github.com/kroma-labs/apiwrap-go/logger"
	"github.com/kroma-labs/apiwrap-go/resource"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	httpCfg, err := apiclient.ConfigFromEnv("EXCHANGE_HTTP_")
	if err != nil {
		log.Fatalf("Failed to load HTTP config: %v", err)
	}

	client := resource.NewClient(
		resource.WithHandle(apiclient.NewHandle(
			apiclient.WithConfig(httpCfg),
			apiclient.WithServiceName("order-exchange"),
			apiclient.WithRateLimit(apiclient.RateLimitConfig{RequestsPerSecond: 2, Burst: 1, WaitOnLimit: true}),
			apiclient.WithBreaker(apiclient.DefaultBreakerConfig()),
		)),
		resource.WithRegistry(resource.NewRegistry().Register("order_bot", shop.NewOrders)),
		resource.WithSettings(apiclient.WithBasicAuth(cfg.Login != "")),
	)
	defer client.Close()

	client.SetDebug(cfg.Debug).SetCookies(cfg.Cookies)

	params := client.Params().AddAuth(apiclient.AuthDomain, cfg.Domain)
	if cfg.Login != "" {
		params.AddAuth(apiclient.AuthLogin, cfg.Login).AddAuth(apiclient.AuthPassword, cfg.Password)
	}
	if cfg.APIKey != "" {
		params.AddAuth("key", cfg.APIKey)
	}
	if cfg.Proxy != "" {
		params.SetProxy(cfg.Proxy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		poll(ctx, client, cfg.Confirm)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			client.Logger().Info("shutting down", nil)
			return
		}
	}
}

func poll(ctx context.Context, client *resource.Client, confirm bool) {
	orders, err := resource.Resolve[*shop.Orders](client, "order_bot")
	if err != nil {
		client.Logger().Error("resolve model", logger.Context{"error": err.Error()})
		return
	}

	batch, err := orders.Load(ctx, confirm)
	if err != nil {
		client.Logger().Error("load orders", logger.Context{"error": err.Error()})
		return
	}

	client.Logger().Info("orders loaded", logger.Context{
		"count":     len(batch),
		"http_code": orders.LastHTTPCode(),
	})
}
