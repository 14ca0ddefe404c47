package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ITNORWA/SMS-APP/internal/api"
	"github.com/ITNORWA/SMS-APP/internal/config"
	"github.com/ITNORWA/SMS-APP/internal/gateway"
	"github.com/ITNORWA/SMS-APP/internal/metrics"
	"github.com/ITNORWA/SMS-APP/internal/probe"
	"github.com/ITNORWA/SMS-APP/internal/repo"
	"github.com/ITNORWA/SMS-APP/internal/scheduler"
	"github.com/ITNORWA/SMS-APP/internal/service"
	"github.com/ITNORWA/SMS-APP/internal/token"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}
	if err := repo.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	gw := gateway.New(gateway.Config{
		BaseURL:  cfg.Gateway.BaseURL,
		Username: cfg.Gateway.Username,
		Password: cfg.Gateway.Password,
		SenderID: cfg.Gateway.SenderID,
	})

	var store token.Store = token.NewMemoryStore()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		store = token.NewRedisStore(rdb)
	}

	tokens := token.NewManager(gw.Login, store)
	m := metrics.New()

	logs := repo.NewPostgresLogRepo(db)
	broadcasts := repo.NewPostgresBroadcastRepo(db)
	templates := repo.NewPostgresTemplateRepo(db)
	rules := repo.NewPostgresRuleRepo(db)

	dispatcher := service.NewDispatcher(gw, tokens, logs, m)
	broadcastSvc := service.NewBroadcastService(broadcasts, templates, logs, dispatcher)
	eventSvc := service.NewEventService(rules, templates, dispatcher)

	sched, err := scheduler.New(cfg.Refresh.Interval, tokens, m)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if cfg.Refresh.AutoStart {
		sched.Start()
	}

	h := api.NewHandler(
		dispatcher,
		broadcastSvc,
		eventSvc,
		templates,
		rules,
		logs,
		gw,
		sched,
		probe.New(nil),
		cfg.Gateway.DefaultDLRURL,
	)

	slog.Info("sms app starting",
		"addr", cfg.Server.Address,
		"refresh_interval", cfg.Refresh.Interval,
		"refresh_autostart", cfg.Refresh.AutoStart,
		"redis", cfg.Redis.Enabled,
	)

	return http.ListenAndServe(cfg.Server.Address, loggingMiddleware(api.Router(h, m.Handler())))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
