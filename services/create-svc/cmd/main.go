package main

import (
	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/services/create-svc/microservice"
)

// Version may be changed during build via --ldflags parameter
var Version = "latest"

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.Info("starting create-svc")

	microService, err := microservice.Init(Version, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize microservice")
	}

	if err := microService.Run(); err != nil {
		logger.WithError(err).Fatal("failed to run microservice")
	}
}
