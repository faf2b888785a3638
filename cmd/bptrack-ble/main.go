package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bptrack/internal/ble"
	"bptrack/internal/config"
	"bptrack/internal/logger"
	"bptrack/internal/mqtt"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "bptrack-ble")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	creds := ble.Credentials{Email: cfg.BLE.APIEmail, Password: cfg.BLE.APIPassword}
	if cfg.BLE.APIToken == "" && cfg.BLE.APIEmail == "" {
		log.Warn("Neither BLE_API_TOKEN nor BLE_API_EMAIL is set, submissions will be rejected by bptrack-data")
	}
	encoding, err := ble.ParseEncoding(cfg.BLE.PayloadEncoding)
	if err != nil {
		log.Fatal("Invalid BLE_PAYLOAD_ENCODING", zap.Error(err))
	}

	mqttClient, err := mqtt.NewClient(&cfg.MQTT, log)
	if err != nil {
		log.Fatal("Failed to connect to MQTT broker", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
	}
	defer mqttClient.Disconnect()

	api := ble.NewAPIClient(cfg.BLE.APIURL, cfg.BLE.APIToken, creds, log)
	consumer := ble.NewConsumer(mqttClient, api, cfg.MQTT.Topic, cfg.MQTT.QoS, encoding, cfg.BLE.MinInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Shutting down bptrack-ble")
	case err := <-errCh:
		if err != nil {
			log.Error("BLE consumer failed", zap.Error(err))
		}
	}

	cancel()
	consumer.Stop()
}
