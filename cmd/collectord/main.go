package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/collector"
	"go-region-annotator/internal/config"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := collector.OpenStore(cfg.CollectorDBPath)
	if err != nil {
		log.Fatalf("Failed to open collector store: %v", err)
	}
	defer store.Close()

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      collector.NewHandler(store, cfg.MaxRequestBodySize),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"db":      cfg.CollectorDBPath,
		}).Info("Starting collector server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down collector...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}

	logrus.Info("Collector exited")
}
