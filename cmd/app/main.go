package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	viewerService "ImageLabelViewer/internal/api/viewer/service"
	"ImageLabelViewer/internal/config"
	"ImageLabelViewer/pkg/log"
	"ImageLabelViewer/pkg/redis"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := newLogger()

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithLabeler(),
		config.WithHub(),
		config.WithViewerConfig(viewerService.ConfigFromEnv()),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}

// newLogger loads the env files before the logger reads LOG_LEVEL, APP_ENV
// and LOG_DIR.
func newLogger(envFiles ...string) *logrus.Logger {
	envErr := godotenv.Load(envFiles...)

	logger := log.NewLogger()
	if envErr != nil {
		logger.Warnf("No .env file loaded: %v", envErr)
	}
	return logger
}
