package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/kwikpik/kwikpik-go/internal/api"
	"github.com/kwikpik/kwikpik-go/internal/config"
	"github.com/kwikpik/kwikpik-go/internal/events"
	"github.com/kwikpik/kwikpik-go/internal/service"
	"github.com/kwikpik/kwikpik-go/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.LoadSandbox()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to open store: %v", err)
	}
	defer st.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, events.DefaultExchange)
		if err != nil {
			log.Fatalf("Unable to connect to RabbitMQ: %v", err)
		}
		publisher = amqpPub
		log.Printf("Publishing lifecycle events to exchange %q", events.DefaultExchange)
	}
	defer publisher.Close()

	// Initialize Layers
	svc := service.NewDispatchService(st, publisher, cfg.JWTSecret)
	handler := api.NewHandler(svc, nil)

	demo, err := svc.Provision(ctx, "Sandbox Business", "sandbox@kwikpik.io", cfg.DemoAPIKey, cfg.DemoBalance)
	if err != nil {
		log.Fatalf("Unable to provision demo business: %v", err)
	}
	log.Printf("Demo business %s ready (api key from SANDBOX_API_KEY)", demo.ID)

	// Delivery simulator
	c := cron.New()
	if _, err := c.AddFunc(cfg.DeliveryTick, func() {
		if _, _, err := svc.AdvanceDeliveries(ctx); err != nil {
			log.Printf("Delivery tick failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Invalid DELIVERY_TICK %q: %v", cfg.DeliveryTick, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods(http.MethodGet)
	handler.Routes(r.PathPrefix("/api/v1").Subrouter(), config.Default())

	var h http.Handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
	)(r)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(cfg.Env == "development"))(h)
	h = handlers.LoggingHandler(os.Stdout, h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Sandbox starting on :%s (%s)", cfg.Port, cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// openStore picks Postgres when DB_SOURCE is set and memory otherwise.
func openStore(ctx context.Context, cfg *config.SandboxConfig) (store.Store, error) {
	if cfg.DBSource == "" {
		log.Println("DB_SOURCE not set, using in-memory store")
		return store.NewMemory(), nil
	}

	pg, err := store.NewPostgres(ctx, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
