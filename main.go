package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "github.com/tyjch/influx-monitor/internal/api/http"
	"github.com/tyjch/influx-monitor/internal/auth"
	"github.com/tyjch/influx-monitor/internal/config"
	"github.com/tyjch/influx-monitor/internal/monitor/application"
	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
	mqttsource "github.com/tyjch/influx-monitor/internal/monitor/infrastructure/mqtt"
	"github.com/tyjch/influx-monitor/internal/monitor/infrastructure/postgres"
	"github.com/tyjch/influx-monitor/internal/monitor/notify"
	"github.com/tyjch/influx-monitor/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := newLogger(cfg.LogFile)

	metrics.Init()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}

	var source application.SampleSource
	switch cfg.Source {
	case config.SourceMQTT:
		retention := cfg.Thresholds.Lookback()
		if cfg.OfflineAfter > retention {
			retention = cfg.OfflineAfter
		}
		cached, err := mqttsource.NewCachedSource(mqttsource.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		}, retention, logger)
		if err != nil {
			logger.Fatalf("mqtt source error: %v", err)
		}
		defer cached.Close()
		source = cached
	default:
		source = postgres.NewReadingSource(db)
	}

	tracker, err := application.NewTracker(cfg.Thresholds, cfg.OfflineAfter)
	if err != nil {
		logger.Fatalf("tracker error: %v", err)
	}
	decider := application.NewDecider(cfg.NotifyRecovery)

	broker := apihttp.NewSSEBroker()
	notifiers := []application.AlertNotifier{broker}
	if cfg.WebhookURL != "" {
		channel, err := notify.NewDiscordChannel(cfg.WebhookURL, notify.WithIdentity(cfg.WebhookUsername, cfg.WebhookAvatarURL))
		if err != nil {
			logger.Fatalf("webhook channel error: %v", err)
		}
		opts := []notify.Option{
			notify.WithCooldown(cfg.NotifyCooldown),
			notify.WithDedupeWindow(cfg.NotifyDedupe),
		}
		if resolver := buildDashboardResolver(cfg.DashboardURL); resolver != nil {
			opts = append(opts, notify.WithDashboardURLResolver(resolver))
		}
		webhookNotifier, err := notify.NewNotifier(channel, logger, opts...)
		if err != nil {
			logger.Fatalf("notifier error: %v", err)
		}
		notifiers = append(notifiers, webhookNotifier)
	}
	var alertRepo *postgres.AlertRepository
	if db != nil {
		alertRepo = postgres.NewAlertRepository(db)
		notifiers = append(notifiers, notify.NewStoreNotifier(alertRepo, logger))
	}

	sensors := make([]application.Sensor, 0, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		sensors = append(sensors, application.Sensor{ID: s.ID, RoomID: s.RoomID})
	}

	poller, err := application.NewPoller(source, tracker, decider, notify.NewMultiNotifier(notifiers...), sensors, cfg.CheckInterval, logger,
		application.WithDispatchTimeout(cfg.DispatchTimeout),
		application.WithShutdownGrace(cfg.ShutdownGrace),
	)
	if err != nil {
		logger.Fatalf("poller error: %v", err)
	}

	statusHandler, err := apihttp.NewStatusHandler(tracker)
	if err != nil {
		logger.Fatalf("status handler error: %v", err)
	}

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret))
	mux := http.NewServeMux()
	mux.Handle("/api/v1/status", authMiddleware.Wrap(statusHandler))
	mux.Handle("/api/v1/alerts/stream", authMiddleware.Wrap(apihttp.NewStreamHandler(broker)))
	if alertRepo != nil {
		alertsHandler, err := apihttp.NewAlertsHandler(alertRepo)
		if err != nil {
			logger.Fatalf("alerts handler error: %v", err)
		}
		mux.Handle("/api/v1/alerts", authMiddleware.Wrap(alertsHandler))

		reportHandler, err := apihttp.NewReportHandler(postgres.NewReadingSource(db), alertRepo)
		if err != nil {
			logger.Fatalf("report handler error: %v", err)
		}
		mux.Handle("/api/v1/reports/daily", authMiddleware.Wrap(reportHandler))
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pollErr := poller.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if pollErr != nil && !errors.Is(pollErr, context.Canceled) {
		logger.Fatalf("poller error: %v", pollErr)
	}
	logger.Printf("shutdown complete")
}

func newLogger(logFile string) *log.Logger {
	writer := io.Writer(os.Stdout)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("log file error: %v", err)
		}
		writer = io.MultiWriter(os.Stdout, f)
	}
	return log.New(writer, "", log.LstdFlags)
}

func buildDashboardResolver(baseURL string) notify.DashboardURLResolver {
	if baseURL == "" {
		return nil
	}
	return func(alert monitor.Alert) string {
		return baseURL + "?var-sensor=" + alert.SensorID
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
