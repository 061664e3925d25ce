// Command sensorgate runs the session-gated sensor backend: the account and
// verification endpoints, the telemetry feed and the viewer websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sensorgate"
	"github.com/MrEthical07/sensorgate/devicetoken"
	"github.com/MrEthical07/sensorgate/httpapi"
	"github.com/MrEthical07/sensorgate/internal/config"
	"github.com/MrEthical07/sensorgate/metrics"
	"github.com/MrEthical07/sensorgate/notify"
	"github.com/MrEthical07/sensorgate/telemetry"
	"github.com/MrEthical07/sensorgate/userstore"
)

func main() {
	configPath := flag.String("config", os.Getenv("SENSORGATE_CONFIG"), "path to the YAML config file")
	flag.Parse()

	log := logrus.New()
	if err := run(*configPath, log); err != nil {
		log.WithError(err).Fatal("sensorgate stopped")
	}
}

func run(configPath string, log *logrus.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogger(log, cfg.Log)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		}); err != nil {
			log.WithError(err).Error("init sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	var users sensorgate.UserStore
	if cfg.Database.DSN != "" {
		db, err := userstore.Open(ctx, cfg.Database.DSN, cfg.Pool())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := userstore.RunMigrations(ctx, db); err != nil {
			return err
		}
		users = userstore.NewPostgres(db)
	} else {
		log.Warn("database.url not set, accounts are kept in memory")
		users = userstore.NewMemory()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	engine, err := sensorgate.New().
		WithConfig(cfg.Engine(sensorgate.DefaultConfig())).
		WithRedis(rdb).
		WithUserStore(users).
		WithMailer(notify.NewMailer(cfg.Mail(), log)).
		WithSMS(notify.NewSMSGateway(cfg.SMSGateway(), log)).
		WithLogger(log).
		WithMetrics(collector).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = engine.Ping(pingCtx)
	cancel()
	if err != nil {
		return err
	}

	hub := telemetry.NewHub(cfg.Telemetry.ViewerBuffer, log)
	defer hub.Close()
	router := telemetry.NewRouter(telemetry.RouterOptions{
		Broadcaster: hub,
		Metrics:     collector,
		Log:         log,
	}, telemetry.DefaultProcessors()...)

	opts := httpapi.Options{
		Engine:    engine,
		Telemetry: router,
		Hub:       hub,
		Metrics:   collector,
		Log:       log,
	}
	if cfg.Telemetry.Feed {
		feed := telemetry.NewFeed(rdb, router, log)
		opts.Publisher = feed
		go func() {
			if err := feed.Run(ctx, nil); err != nil {
				log.WithError(err).Error("telemetry feed stopped")
			}
		}()
	}
	if dcfg, ok := cfg.DeviceToken(); ok {
		devices, err := devicetoken.NewManager(dcfg)
		if err != nil {
			return err
		}
		opts.Devices = devices
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewServer(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(log *logrus.Logger, cfg config.LogConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
}
