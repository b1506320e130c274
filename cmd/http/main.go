package main

import (
	"io"
	"os"
	"strconv"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/events"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/metrics"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/server"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = os.Mkdir("log", 0777)
	logFile, err := os.OpenFile("log/run.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0777)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			panic(err)
		}
	}()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "fl-orch",
		Level:  hclog.LevelFromString("DEBUG"),
		Output: io.MultiWriter(os.Stdout, logFile),
	})

	port := 8080
	if len(os.Args) >= 2 {
		port, err = strconv.Atoi(os.Args[1])
		if err != nil {
			logger.Error("Invalid port ::", "error", err)
			return
		}
	}

	eventBus := events.NewEventBus()

	collector, err := metrics.NewPrometheus(prometheus.DefaultRegisterer, "")
	if err != nil {
		logger.Error("Error while registering metrics ::", "error", err)
		return
	}

	handler := server.NewHandler(logger, eventBus, collector)
	defaultRouter := server.NewRouter(handler, promhttp.Handler())

	if err := server.StartHttpServer(logger, defaultRouter, port); err != nil {
		logger.Error("Server stopped with error", "error", err)
	}

	handler.StopAll()
}
