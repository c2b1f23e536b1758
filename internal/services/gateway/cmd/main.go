package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/camera"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/control"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/history"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/monitor"
	"github.com/LeonardoBeccarini/greenhouse/pkg/broker"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
)

const healthService = "greenhouse.Dashboard"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logger.Init("info")
		logger.Logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")
	loc := history.LoadLocation(cfg.Timezone)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// === Realtime backend ===
	var backend realtime.Backend
	if cfg.Broker.Enabled {
		client, err := broker.Connect(ctx, broker.Config{
			Host:     cfg.Broker.Host,
			Port:     cfg.Broker.Port,
			User:     cfg.Broker.User,
			Password: cfg.Broker.Password,
			ClientID: cfg.Broker.ClientID,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt connection error")
		}
		defer broker.Close(client)
		backend = realtime.NewMQTT(client, cfg.Broker.Prefix)
	} else {
		log.Warn().Msg("broker disabled, using the in-process backend")
		backend = realtime.NewMemory()
	}

	// === InfluxDB archive ===
	var (
		influx  influxdb2.Client
		writer  *history.Writer
		archive history.Archive
	)
	if cfg.Influx.Enabled {
		opts := influxdb2.DefaultOptions().
			SetBatchSize(uint(cfg.Influx.BatchSize)).
			SetFlushInterval(uint(cfg.Influx.FlushInterval.Milliseconds()))
		influx = influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, opts)
		defer influx.Close()
		writer = history.NewWriter(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket))
		defer writer.Flush()
		archive = history.NewInfluxStore(writer, influx.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket, cfg.Influx.Measurement, cfg.Influx.Lookback)
	}

	// === Notifications ===
	toasts := monitor.NewToastFeed()
	var (
		emailSender monitor.EmailSender
		emailClient *monitor.EmailClient
	)
	if cfg.Email.EmailEnabled() {
		emailClient = monitor.NewEmailClient(monitor.EmailConfig{
			Endpoint:        cfg.Email.Endpoint,
			ServiceID:       cfg.Email.ServiceID,
			TemplateID:      cfg.Email.TemplateID,
			UserID:          cfg.Email.UserID,
			Timeout:         cfg.Email.Timeout,
			BreakerFailures: cfg.Email.BreakerFailures,
			BreakerOpenFor:  cfg.Email.BreakerOpenFor,
			BreakerInterval: cfg.Email.BreakerInterval,
			Location:        loc,
		})
		emailSender = emailClient
	} else {
		log.Warn().Msg("EmailJS identifiers not set, alerts are toast only")
	}
	var sinks []monitor.AlertSink
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := monitor.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatal().Err(err).Msg("kafka sink")
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}
	dispatcher := monitor.NewDispatcher(toasts, emailSender, cfg.Email.Timeout, sinks...)

	// === Services ===
	mon := monitor.New(backend, dispatcher, toasts, monitor.WithEmailCache(monitor.NewEmailCache(cfg.Email.CachePath)))
	hist := history.NewService(backend, archive, history.Config{
		Limit:    cfg.History.Limit,
		Refresh:  cfg.History.Refresh,
		Location: loc,
	})
	ctl := control.NewService(backend, mon, toasts, loc)
	cam := camera.NewService(backend, toasts)

	go run(ctx, log, "monitor", mon.Run)
	go run(ctx, log, "history", hist.Run)
	if err := cam.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("camera subscriptions")
	}

	// === gRPC health ===
	hs := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Int("port", cfg.GRPCPort).Msg("grpc listen")
	}
	go func() {
		log.Info().Int("port", cfg.GRPCPort).Msg("gRPC health listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve error")
		}
	}()
	go watchHealth(ctx, hs, backend)

	// === HTTP ===
	healthDeps := app.HealthDeps{Backend: backend, Influx: influx, Writer: writer, Measurement: cfg.Influx.Measurement}
	if emailClient != nil {
		healthDeps.Email = emailClient
	}
	gw := app.NewGateway(app.Config{Location: loc, AllowedOrigins: cfg.AllowedOrigins}, app.Deps{
		State:   mon,
		History: hist,
		Toasts:  toasts,
		Control: ctl,
		Camera:  cam,
		Health:  healthDeps,
	})
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           gw.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	grpcServer.GracefulStop()

	// in-flight e-mails are not cancelled, only given a chance to finish
	if !dispatcher.Drain(cfg.ShutdownTimeout) {
		log.Warn().Msg("alert deliveries still in flight at shutdown")
	}
}

func run(ctx context.Context, log zerolog.Logger, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("service", name).Msg("service stopped")
	}
}

// watchHealth mirrors the backend connection into the gRPC health status.
func watchHealth(ctx context.Context, hs *health.Server, backend realtime.Backend) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		if backend.Connected() {
			st = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(healthService, st)

		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
		}
	}
}
