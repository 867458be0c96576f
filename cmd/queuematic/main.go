package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretimiss/queuematic/internal/config"
	"github.com/aretimiss/queuematic/internal/httpapi"
	"github.com/aretimiss/queuematic/internal/hub"
	"github.com/aretimiss/queuematic/internal/lifecycle"
	"github.com/aretimiss/queuematic/internal/metrics"
	"github.com/aretimiss/queuematic/internal/notify"
	"github.com/aretimiss/queuematic/internal/poller"
	"github.com/aretimiss/queuematic/internal/remote"
	"github.com/aretimiss/queuematic/internal/store"
	filestore "github.com/aretimiss/queuematic/internal/store/file"
	pgstore "github.com/aretimiss/queuematic/internal/store/postgres"
	redisstore "github.com/aretimiss/queuematic/internal/store/redis"
	"github.com/aretimiss/queuematic/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.AuthorityURL == "" {
		log.Fatal("QUEUE_AUTHORITY_URL is required")
	}

	shutdownTelemetry := telemetry.Setup(context.Background(), "queuematic")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	ticketStore := openStore(cfg)
	defer ticketStore.Close()

	client := remote.NewClient(cfg.AuthorityURL, cfg.AuthorityTimeout)
	m := metrics.New()
	h := hub.New()

	banners := notify.NewBannerBoard(cfg.BannerTTL, cfg.CompactBannerTTL, func(view notify.BannerView) {
		h.Broadcast(hub.EventBanner, view)
	})
	dispatcher := notify.NewDispatcher(
		notify.NewProvider("push", notify.ProviderConfig{Kind: cfg.PushProvider, URL: cfg.PushWebhookURL, Token: cfg.PushWebhookToken}),
		notify.NewProvider("sound", notify.ProviderConfig{Kind: cfg.SoundProvider, URL: cfg.SoundWebhookURL, Token: cfg.SoundWebhookToken}),
		banners,
		m,
	)
	scheduler := poller.New(client, poller.Config{
		StatusInterval: cfg.StatusInterval,
		NotifyInterval: cfg.NotifyInterval,
	}, m)
	controller := lifecycle.New(ticketStore, client, scheduler, dispatcher, h.Broadcast)

	if err := controller.Start(context.Background()); err != nil {
		log.Fatalf("lifecycle start: %v", err)
	}

	handler := httpapi.NewHandler(controller, client, httpapi.Options{AdminTokenHash: cfg.AdminTokenHash})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		serveRealtime(session, h, controller)
	}))
	mux.Handle("/", handler.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "queuematic"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("queuematic listening on %s", server.Addr)
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
	controller.Stop()
}

// serveRealtime attaches one presentation client to the hub and replays the
// current lifecycle state so a reconnecting UI renders immediately.
func serveRealtime(session sockjs.Session, h *hub.Hub, controller *lifecycle.Controller) {
	client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
	h.Register(client)
	defer h.Unregister(client)

	go func() {
		for msg := range client.Send {
			_ = session.Send(string(msg))
		}
	}()

	if data, err := json.Marshal(hub.Envelope{Type: hub.EventState, Payload: mustJSON(controller.State()), CreatedAt: time.Now().UTC()}); err == nil {
		_ = session.Send(string(data))
	}

	for {
		msg, err := session.Recv()
		if err != nil {
			return
		}
		parsed, ok := hub.ParseSubscribe([]byte(msg))
		if !ok {
			continue
		}
		if parsed.Action == "unsubscribe" {
			h.Subscribe(client, nil)
			continue
		}
		h.Subscribe(client, parsed.Topics)
	}
}

func mustJSON(value interface{}) json.RawMessage {
	data, err := json.Marshal(value)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

func openStore(cfg config.Config) store.TicketStore {
	switch {
	case cfg.DatabaseURL != "":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		st, err := pgstore.NewStore(ctx, pool)
		if err != nil {
			log.Fatalf("db schema: %v", err)
		}
		return st
	case cfg.RedisURL != "":
		st, err := redisstore.NewStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connect: %v", err)
		}
		return st
	default:
		st, err := filestore.NewStore(cfg.StateDir)
		if err != nil {
			log.Fatalf("state dir: %v", err)
		}
		return st
	}
}
