package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/container"
)

func main() {
	// The desktop shell supplies the privileged snapshot source at
	// integration time; without one the capture chain synthesizes
	// placeholders.
	c, err := container.NewContainer(nil)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pending, err := c.ResumePendingRetries(ctx)
	cancel()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to inspect outbox")
	}
	if pending > 0 {
		logrus.WithField("pending", pending).Info("Resuming delivery retries from previous run")
	}

	// Warm the schema cache so the first capture has categories even if
	// the collector goes away afterwards.
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := c.SchemaCache().Fetch(ctx); err != nil {
		logrus.WithError(err).Warn("Schema not available at startup")
	}
	cancel()

	logrus.WithFields(logrus.Fields{
		"primary":   c.Config().PrimaryURL(),
		"secondary": c.Config().SecondaryURL(),
	}).Info("Capture agent ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Capture agent exited")
}
