package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/simulation"
	"github.com/hashicorp/go-hclog"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := flconfig.DefaultFlConfiguration()
	if len(os.Args) >= 2 {
		loaded, err := flconfig.LoadFile(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error while loading configuration: %s\n", err.Error())
			return 2
		}
		cfg = loaded
	}

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
		Name:   "fl-sim",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: io.MultiWriter(os.Stdout, logFile),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, err := simulation.Build(ctx, cfg, simulation.Options{Logger: logger})
	if err != nil {
		logger.Error("Error while initializing simulation ::", "error", err)
		return 1
	}
	defer sim.Close()

	if err := sim.Orchestrator.Run(ctx); err != nil {
		logger.Error("Simulation failed", "error", err)
		return 1
	}

	status := sim.Orchestrator.Status()
	logger.Info(fmt.Sprintf("Final accuracy: %.2f%%, loss: %.4f after %d rounds", status.LastAccuracy, status.LastLoss,
		status.CompletedRounds))

	return 0
}
