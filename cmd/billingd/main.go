package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/billingkit/pkg/billing"
	"github.com/dmitrymomot/billingkit/pkg/billing/httpapi"
	"github.com/dmitrymomot/billingkit/pkg/billing/pgstore"
	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
)

type appConfig struct {
	Log    logger.Config
	HTTP   httpserver.Config
	DB     pg.Config
	Stripe billing.StripeConfig

	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `env:"CHECKOUT_CANCEL_URL"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.FromConfig(cfg.Log, logger.WithService("billingd"))

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("billingd exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.DB, log); err != nil {
		return err
	}

	opts := []billing.ServiceOption{
		billing.WithLogger(log),
		billing.WithCheckoutURLs(cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
	}
	if cfg.Stripe.Configured() {
		gateway, err := billing.NewStripeGateway(cfg.Stripe)
		if err != nil {
			return err
		}
		opts = append(opts, billing.WithGateway(gateway))
	} else {
		log.Warn("stripe credentials missing, paid checkout is disabled")
	}

	svc := billing.NewService(pgstore.New(pool), opts...)
	api := httpapi.New(svc, httpapi.WithLogger(log))

	router := chi.NewRouter()
	router.Get("/health", httpserver.HealthCheckHandler(log))
	router.Get("/ready", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool)))
	router.Mount("/api/v1", api.Router())

	return httpserver.New(cfg.HTTP, log).Run(ctx, router)
}
