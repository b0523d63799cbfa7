package main

import (
	"context"
	"errors"

	"course-pilot/internal/app"
	"course-pilot/internal/config"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

const SERVICENAME = "study-reminder"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Error("Failed to load config")
		panic(err)
	}
	logger := app.NewLogger(SERVICENAME, cfg.Log)

	if !cfg.LineEnabled() {
		err := errors.New("CHANNEL_SECRET and CHANNEL_TOKEN must be set")
		logger.WithError(err).Error("Failed to get environment variables")
		panic(err)
	}

	svc, err := app.NewTutor(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create tutor service")
		panic(err)
	}

	handler, err := NewHandler(logger, svc)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	// scheduler and direct invokes send {"userId": "..."}
	lambda.Start(handler.HandleReminder)
}
