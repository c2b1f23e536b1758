package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	sensorSimulator "github.com/LeonardoBeccarini/greenhouse/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/history"
	"github.com/LeonardoBeccarini/greenhouse/pkg/broker"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// define flags
	host := flag.String("broker-host", "localhost", "MQTT broker host")
	port := flag.Int("broker-port", 1883, "MQTT broker port")
	user := flag.String("broker-user", "guest", "MQTT user")
	password := flag.String("broker-password", "guest", "MQTT password")
	clientID := flag.String("client-id", "greenhouse-rig", "MQTT client ID")
	prefix := flag.String("prefix", "", "topic prefix prepended to every path")
	interval := flag.Duration("interval", 10*time.Second, "reading publish interval")
	historyEvery := flag.Duration("history-every", 5*time.Minute, "history row interval")
	probes := flag.Int("probes", 4, "number of soil moisture probes")
	ip := flag.String("ip", "192.168.1.20", "address reported in the status heartbeat")
	cameraIP := flag.String("camera-ip", "192.168.1.40", "camera board address, empty for no camera")
	version := flag.String("version", "sim-1.0.0", "firmware version reported")
	tz := flag.String("tz", history.DefaultTimezone, "timezone of the light schedule")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger.Init(*level)
	log := logger.WithComponent("rig")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := broker.Connect(ctx, broker.Config{
		Host:     *host,
		Port:     *port,
		User:     *user,
		Password: *password,
		ClientID: *clientID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connection error")
	}
	defer broker.Close(client)

	backend := realtime.NewMQTT(client, *prefix)
	generator := sensorSimulator.NewDataGenerator(*probes, time.Now().UnixNano())
	rig := sensorSimulator.NewSensorSimulator(backend, generator, sensorSimulator.Config{
		Interval:     *interval,
		HistoryEvery: *historyEvery,
		Location:     history.LoadLocation(*tz),
		IPAddress:    *ip,
		CameraIP:     *cameraIP,
		Version:      *version,
	})

	log.Info().Dur("interval", *interval).Int("probes", *probes).Msg("rig simulator starting")
	if err := rig.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("rig simulator stopped")
	}
}
