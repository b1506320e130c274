package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	natsrt "github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch/nats"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/simulation"
	"github.com/hashicorp/go-hclog"
)

// usage: worker <config.yaml> [clientIds, e.g. 0,2,5]
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: worker <config.yaml> [clientIds]")
		os.Exit(2)
	}

	cfg, err := flconfig.LoadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error while loading configuration: %s\n", err.Error())
		os.Exit(2)
	}

	clientIds := []int{}
	if len(os.Args) >= 3 {
		clientIds, err = parseClientIds(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid client ids: %s\n", err.Error())
			os.Exit(2)
		}
	}

	_ = os.Mkdir("log", 0777)
	logFile, err := os.OpenFile("log/worker.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0777)
	if err != nil {
		panic(err)
	}
	defer logFile.Close()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "fl-worker",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: io.MultiWriter(os.Stdout, logFile),
	})

	data, err := simulation.PrepareData(cfg, logger)
	if err != nil {
		logger.Error("Error while preparing data ::", "error", err)
		return
	}

	shards, err := simulation.SelectShards(data.Shards, clientIds)
	if err != nil {
		logger.Error("Error while selecting shards ::", "error", err)
		return
	}

	runtime, err := simulation.NewLocalRuntime(cfg, data.Architecture, shards, logger)
	if err != nil {
		logger.Error("Error while creating client runtime ::", "error", err)
		return
	}

	conn, err := simulation.ConnectNats(cfg.Transport.NatsUrl, "fl-worker", logger)
	if err != nil {
		logger.Error("Error while connecting to NATS ::", "error", err)
		return
	}
	defer conn.Close()

	worker := natsrt.NewWorker(conn, runtime, cfg.RoundTimeout.Std(), logger)
	if err := worker.Start(); err != nil {
		logger.Error("Error while starting worker ::", "error", err)
		return
	}

	// trap sigterm or interupt and stop serving
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	logger.Info(fmt.Sprintf("Got signal: %s", sig))

	if err := worker.Stop(); err != nil {
		logger.Warn("Error while stopping worker", "error", err)
	}
}

func parseClientIds(arg string) ([]int, error) {
	ids := []int{}
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
