package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/VanDung-dev/DeltaKernel-Engine/kernel"
	"github.com/VanDung-dev/DeltaKernel-Engine/server"
)

// loadConfig reads kernel-server.yaml (optional) and DELTAKERNEL_*
// environment variables.
func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetDefault("endpoint", "tcp://*:5601")
	v.SetDefault("table_path", "")
	v.SetDefault("metrics_addr", ":2112")
	v.SetDefault("storage_backend", "")
	v.SetDefault("log_level", "info")

	v.SetConfigName("kernel-server")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Failed to read config: %v", err)
		}
	}

	v.SetEnvPrefix("DELTAKERNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func main() {
	cfg := loadConfig()

	level, err := logrus.ParseLevel(cfg.GetString("log_level"))
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)

	tablePath := cfg.GetString("table_path")
	if tablePath == "" {
		log.Fatal("table_path must be configured (DELTAKERNEL_TABLE_PATH)")
	}

	builderRes := kernel.NewEngineBuilder(tablePath)
	if builderRes.IsErr() {
		log.Fatalf("Failed to create engine builder: %v", builderRes.UnwrapErr())
	}
	builder := builderRes.Unwrap()
	if backend := cfg.GetString("storage_backend"); backend != "" {
		builder.SetOption(kernel.OptionStorageBackend, backend)
	}
	engineRes := builder.Build()
	if engineRes.IsErr() {
		log.Fatalf("Failed to build engine: %v", engineRes.UnwrapErr())
	}
	engine := engineRes.Unwrap()
	defer engine.Release()

	metrics := server.NewMetrics("deltakernel")
	metricsSrv := server.NewMetricsServer(cfg.GetString("metrics_addr"))
	metricsSrv.StartAsync()

	ingest := server.NewIngestServer(server.IngestConfig{
		Endpoint:  cfg.GetString("endpoint"),
		TablePath: tablePath,
	}, engine, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- ingest.Start()
	}()

	log.Printf("Starting ingest server on %s (table %s)...", cfg.GetString("endpoint"), tablePath)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}

	log.Println("Shutting down server...")
	ingest.Stop()
	if err := metricsSrv.Stop(); err != nil {
		log.Printf("Metrics server shutdown: %v", err)
	}
	log.Println("Server stopped.")
}
