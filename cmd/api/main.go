package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fieldpulse.org/internal/attendance"
	"fieldpulse.org/internal/auth"
	"fieldpulse.org/internal/config"
	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/entry"
	"fieldpulse.org/internal/httpapi"
	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/obs"
	"fieldpulse.org/internal/scope"
	"fieldpulse.org/internal/store/pg"
	"fieldpulse.org/internal/team"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Stores: PostgreSQL when a DSN is configured, in-memory otherwise.
	var (
		users      directory.Store
		entries    entry.Store
		notes      notify.Store
		attRecords attendance.Store
		pgStore    *pg.Store
		readyProbe httpapi.ReadyProbe
	)
	if cfg.Database.DSN != "" {
		pgStore, err = pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db := pgStore.DB()
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

		users = pgStore.Users()
		entries = pgStore.Entries()
		notes = pgStore.Notifications()
		attRecords = pgStore.Attendance()
		readyProbe = httpapi.ReadyProbe{DB: db}
	} else {
		log.Println("PG_DSN not set, using in-memory stores")
		users = directory.NewInMemory()
		entries = entry.NewInMemory()
		notes = notify.NewInMemory()
		attRecords = attendance.NewInMemory()
	}

	// Live delivery: redis pub/sub when configured, in-process hub otherwise.
	var broker notify.Broker
	if cfg.Redis.Addr != "" {
		broker = notify.NewRedisBroker(cfg.Redis.Addr)
	} else {
		broker = notify.NewHub()
	}

	resolver := scope.NewResolver(users)
	dispatcher := notify.NewDispatcher(notes, broker)
	defer func() { _ = dispatcher.Close() }()

	attendanceSvc, err := attendance.NewService(attRecords, resolver, cfg.Attendance.LateAfter)
	if err != nil {
		log.Fatalf("attendance policy: %v", err)
	}
	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.AccessTTL)
	if err != nil {
		log.Fatalf("token config: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		Users:      directory.NewService(users),
		UserStore:  users,
		Roster:     team.NewRoster(users, resolver),
		Graph:      team.NewGraph(users, dispatcher),
		Entries:    entry.NewService(entries, resolver, dispatcher),
		Attendance: attendanceSvc,
		Notifier:   dispatcher,
		Tokens:     tokens,
		ReadyProbe: readyProbe,
		Version:    version,
	})

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.MaxBodyBytes(
						httpapi.RateLimit(api.Handler(), cfg.Server.RateBurst, cfg.Server.RatePerSecond),
						cfg.Server.MaxBodyBytes,
					),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting fieldpulse-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
