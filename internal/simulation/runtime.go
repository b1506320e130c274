package simulation

import (
	"fmt"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/client"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch"
	localrt "github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch/local"
	natsrt "github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch/nats"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/learning"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const natsConnectTimeout = 5 * time.Second

// NewLocalRuntime hosts the given shards in-process, one seeded trainer per
// client.
func NewLocalRuntime(cfg *flconfig.FlConfiguration, arch learning.Architecture, shards []*model.Shard,
	logger hclog.Logger) (*localrt.LocalRuntime, error) {
	optimizerFactory, err := learning.SGDFactory(cfg.Momentum)
	if err != nil {
		return nil, err
	}

	return localrt.NewLocalRuntime(shards, func(clientId int) (*client.LocalTrainer, error) {
		return client.NewLocalTrainer(arch, optimizerFactory, cfg.BatchSize, cfg.Seed, clientId)
	}, logger.Named("clients"))
}

// StartEmbeddedNats runs a NATS server inside the process on a random local
// port.
func StartEmbeddedNats(logger hclog.Logger) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:  "127.0.0.1",
		Port:  server.RANDOM_PORT,
		NoLog: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(natsConnectTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server not ready after %s", natsConnectTimeout)
	}

	logger.Info(fmt.Sprintf("Embedded NATS server listening on %s", ns.ClientURL()))
	return ns, nil
}

func ConnectNats(url string, name string, logger hclog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(natsConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(fmt.Sprintf("NATS reconnected to %s", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return conn, nil
}

// newNatsRuntime returns a coordinator-side runtime for every client. With an
// embedded server the clients are served by an in-process worker.
func (sim *Simulation) newNatsRuntime(cfg *flconfig.FlConfiguration, data *Data, logger hclog.Logger) (contorch.IClientRuntime, error) {
	url := cfg.Transport.NatsUrl

	if cfg.Transport.Embedded {
		ns, err := StartEmbeddedNats(logger)
		if err != nil {
			return nil, err
		}
		sim.onClose(func() error {
			ns.Shutdown()
			ns.WaitForShutdown()
			return nil
		})
		url = ns.ClientURL()

		workerConn, err := ConnectNats(url, "fl-worker", logger)
		if err != nil {
			return nil, err
		}
		sim.onClose(func() error {
			workerConn.Close()
			return nil
		})

		local, err := NewLocalRuntime(cfg, data.Architecture, data.Shards, logger)
		if err != nil {
			return nil, err
		}
		worker := natsrt.NewWorker(workerConn, local, cfg.RoundTimeout.Std(), logger.Named("worker"))
		if err := worker.Start(); err != nil {
			return nil, err
		}
		sim.onClose(worker.Stop)
	}

	conn, err := ConnectNats(url, "fl-coordinator", logger)
	if err != nil {
		return nil, err
	}
	sim.onClose(func() error {
		conn.Close()
		return nil
	})

	ids := make([]int, cfg.NumClients)
	for i := range ids {
		ids[i] = i
	}
	return natsrt.NewNatsRuntime(conn, ids, cfg.Transport.RequestTimeout.Std(), logger.Named("nats")), nil
}
