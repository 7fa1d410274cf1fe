package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"gorm.io/gorm/logger"

	"github.com/arnold/taskflow-api/internal/boardsync"
	"github.com/arnold/taskflow-api/internal/config"
	"github.com/arnold/taskflow-api/internal/database"
	"github.com/arnold/taskflow-api/internal/handlers"
	"github.com/arnold/taskflow-api/internal/logging"
	"github.com/arnold/taskflow-api/internal/middleware"
	"github.com/arnold/taskflow-api/internal/routes"
	"github.com/arnold/taskflow-api/internal/services"
	"github.com/arnold/taskflow-api/internal/store"
	"github.com/arnold/taskflow-api/internal/store/feed"
	fsstore "github.com/arnold/taskflow-api/internal/store/firestore"
	"github.com/arnold/taskflow-api/internal/store/gormstore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded")
	}
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fbApp, err := newFirebaseApp(ctx, cfg)
	if err != nil {
		return err
	}

	st, closeBackend, err := openStore(ctx, cfg, fbApp)
	if err != nil {
		return err
	}
	defer closeBackend()

	var verifier middleware.IDTokenVerifier
	var msgClient *messaging.Client
	if fbApp != nil {
		if authClient, err := fbApp.Auth(ctx); err != nil {
			log.WithError(err).Warn("Firebase auth unavailable, only service tokens are accepted")
		} else {
			verifier = authClient
		}
		if msgClient, err = fbApp.Messaging(ctx); err != nil {
			log.WithError(err).Warn("FCM: failed to get messaging client")
			msgClient = nil
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := handlers.NewHub()
	sessions := boardsync.NewManager(st.Boards, boardsync.Options{
		Settle:   cfg.SyncSettle,
		Metrics:  boardsync.NewMetrics(reg),
		Notifier: hub,
	}, boardsync.DefaultIdleTimeout)
	recorder := services.NewRecorder(st, services.NewFCM(msgClient))
	auth := middleware.NewAuthenticator(cfg.JWTSecret, verifier)

	app := fiber.New(fiber.Config{AppName: "taskflow-api"})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + handlers.ClientIDHeader,
	}))
	routes.Setup(app, handlers.New(st, sessions, recorder, hub), auth, reg)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "backend": cfg.StoreBackend}).Info("listening")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := sessions.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("closing board sessions")
	}
	recorder.Wait()
	return nil
}

// newFirebaseApp returns nil when Firebase is not configured.
func newFirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	creds := cfg.FirebaseCredentials
	if creds == "" {
		creds = cfg.FCMServiceAccount
	}
	if !cfg.FirebaseEnabled() && creds == "" && cfg.StoreBackend != config.BackendFirestore {
		log.Info("Firebase not configured")
		return nil, nil
	}

	var opts []option.ClientOption
	if creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	var fbCfg *firebase.Config
	if cfg.FirestoreProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.FirestoreProjectID}
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app, nil
}

// openStore builds the configured backend and returns its cleanup.
func openStore(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (*store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		if fbApp == nil {
			return nil, nil, errors.New("firestore backend needs Firebase configuration")
		}
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		st := fsstore.NewWithClient(client)
		return st, func() { closeLogged("firestore", st.Close) }, nil

	case config.BackendSQL:
		db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}

		var f feed.Feed = feed.NewLocal()
		var rc *redis.Client
		if cfg.RedisURL != "" {
			redisOpts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
			}
			rc = redis.NewClient(redisOpts)
			rf := feed.NewRedis(rc, feed.DefaultChannel)
			select {
			case <-rf.Ready():
				log.Info("redis change feed subscribed")
			case <-time.After(5 * time.Second):
				log.Warn("redis change feed not ready yet, continuing")
			}
			f = rf
		}

		st := gormstore.New(db, f)
		return st, func() {
			closeLogged("change feed", st.Close)
			if rc != nil {
				closeLogged("redis", rc.Close)
			}
			closeLogged("database", sqlDB.Close)
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

func closeLogged(what string, fn func() error) {
	if err := fn(); err != nil {
		log.WithError(err).Warnf("closing %s", what)
	}
}
