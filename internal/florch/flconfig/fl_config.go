package flconfig

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/dataset"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/cost"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/partition"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// FlConfiguration is the complete configuration of one simulated run.
type FlConfiguration struct {
	NumClients         int      `yaml:"numClients" json:"numClients"`
	ClientFraction     float64  `yaml:"clientFraction" json:"clientFraction"`
	Rounds             int      `yaml:"rounds" json:"rounds"`
	LocalEpochs        int      `yaml:"localEpochs" json:"localEpochs"`
	BatchSize          int      `yaml:"batchSize" json:"batchSize"`
	EvalBatchSize      int      `yaml:"evalBatchSize" json:"evalBatchSize"`
	LearningRate       float64  `yaml:"learningRate" json:"learningRate"`
	Momentum           float64  `yaml:"momentum" json:"momentum"`
	DataSplit          string   `yaml:"dataSplit" json:"dataSplit"`
	EmptyClients       string   `yaml:"emptyClients" json:"emptyClients"`
	Weighting          string   `yaml:"weighting" json:"weighting"`
	Device             string   `yaml:"device" json:"device"`
	Seed               uint64   `yaml:"seed" json:"seed"`
	RoundTimeout       Duration `yaml:"roundTimeout" json:"roundTimeout"`
	MaxParallelClients int      `yaml:"maxParallelClients" json:"maxParallelClients"`
	EvaluateClients    bool     `yaml:"evaluateClients" json:"evaluateClients"`
	OutputPath         string   `yaml:"outputPath" json:"outputPath"`
	MetricsLogPath     string   `yaml:"metricsLogPath" json:"metricsLogPath"`
	LogLevel           string   `yaml:"logLevel" json:"logLevel"`

	Model      ModelConfig            `yaml:"model" json:"model"`
	Dataset    DatasetConfig          `yaml:"dataset" json:"dataset"`
	Checkpoint CheckpointConfig       `yaml:"checkpoint" json:"checkpoint"`
	Transport  TransportConfig        `yaml:"transport" json:"transport"`
	Cost       cost.CostConfiguration `yaml:"cost" json:"cost"`
}

type ModelConfig struct {
	Architecture string `yaml:"architecture" json:"architecture"`
	HiddenSize   int    `yaml:"hiddenSize" json:"hiddenSize"`
}

const Synthetic_DatasetSource = "synthetic"
const Csv_DatasetSource = "csv"

type DatasetConfig struct {
	Source          string                   `yaml:"source" json:"source"`
	Synthetic       dataset.SyntheticOptions `yaml:"synthetic" json:"synthetic"`
	TrainCsv        string                   `yaml:"trainCsv" json:"trainCsv"`
	TestCsv         string                   `yaml:"testCsv" json:"testCsv"`
	HoldOutFraction float64                  `yaml:"holdOutFraction" json:"holdOutFraction"`
}

type CheckpointConfig struct {
	Backend     string `yaml:"backend" json:"backend"`
	EveryRound  bool   `yaml:"everyRound" json:"everyRound"`
	Schedule    string `yaml:"schedule" json:"schedule"`
	ResumeFrom  string `yaml:"resumeFrom" json:"resumeFrom"`
	RedisAddr   string `yaml:"redisAddr" json:"redisAddr"`
	RedisPrefix string `yaml:"redisPrefix" json:"redisPrefix"`
}

type TransportConfig struct {
	Type           string   `yaml:"type" json:"type"`
	NatsUrl        string   `yaml:"natsUrl" json:"natsUrl"`
	Embedded       bool     `yaml:"embedded" json:"embedded"`
	RequestTimeout Duration `yaml:"requestTimeout" json:"requestTimeout"`
}

// DefaultFlConfiguration mirrors the defaults of the reference command line:
// 5 clients, all selected, 10 rounds of 1 local epoch, batch size 64,
// learning rate 0.01, IID split on the CPU.
func DefaultFlConfiguration() *FlConfiguration {
	return &FlConfiguration{
		NumClients:     5,
		ClientFraction: 1.0,
		Rounds:         10,
		LocalEpochs:    1,
		BatchSize:      64,
		EvalBatchSize:  64,
		LearningRate:   0.01,
		DataSplit:      common.PARTITION_IID,
		EmptyClients:   common.EMPTY_CLIENTS_RETAIN,
		Weighting:      common.WEIGHTING_UNIFORM,
		Device:         common.DEVICE_CPU,
		Seed:           42,
		RoundTimeout:   Duration(5 * time.Minute),
		OutputPath:     "global_model.json",
		LogLevel:       "INFO",
		Model: ModelConfig{
			Architecture: common.ARCHITECTURE_MLP,
			HiddenSize:   128,
		},
		Dataset: DatasetConfig{
			Source:          Synthetic_DatasetSource,
			Synthetic:       dataset.DefaultSyntheticOptions(),
			HoldOutFraction: 0.2,
		},
		Checkpoint: CheckpointConfig{
			Backend:     common.CHECKPOINT_BACKEND_FILE,
			RedisPrefix: "fl-sim:",
		},
		Transport: TransportConfig{
			Type:           common.TRANSPORT_LOCAL,
			NatsUrl:        "nats://127.0.0.1:4222",
			RequestTimeout: Duration(time.Minute),
		},
		Cost: cost.CostConfiguration{
			CostType: cost.None_CostType,
		},
	}
}

// DecodeTarget returns the defaults as a struct to decode a partial
// configuration into. Fields the document omits keep their defaults; explicit
// zeros reach Validate. Call ResolveDerived after decoding.
func DecodeTarget() *FlConfiguration {
	cfg := DefaultFlConfiguration()
	cfg.EvalBatchSize = 0
	return cfg
}

// ResolveDerived fills fields whose default depends on other fields.
func (cfg *FlConfiguration) ResolveDerived() {
	if cfg.EvalBatchSize == 0 {
		cfg.EvalBatchSize = cfg.BatchSize
	}
}

// Validate checks every field. All failures wrap common.ErrConfiguration.
func (cfg *FlConfiguration) Validate() error {
	if cfg.NumClients < 1 {
		return configError("numClients must be at least 1, got %d", cfg.NumClients)
	}
	if !(cfg.ClientFraction > 0 && cfg.ClientFraction <= 1) {
		return configError("clientFraction must be in (0, 1], got %v", cfg.ClientFraction)
	}
	if cfg.Rounds < 1 {
		return configError("rounds must be at least 1, got %d", cfg.Rounds)
	}
	if cfg.LocalEpochs < 1 {
		return configError("localEpochs must be at least 1, got %d", cfg.LocalEpochs)
	}
	if cfg.BatchSize < 1 || cfg.EvalBatchSize < 1 {
		return configError("batch sizes must be positive, got %d and %d", cfg.BatchSize, cfg.EvalBatchSize)
	}
	if !(cfg.LearningRate > 0) || math.IsInf(cfg.LearningRate, 0) {
		return configError("learningRate must be positive and finite, got %v", cfg.LearningRate)
	}
	if cfg.Momentum < 0 || cfg.Momentum >= 1 {
		return configError("momentum must be in [0, 1), got %v", cfg.Momentum)
	}
	if _, err := partition.ParsePolicy(cfg.DataSplit); err != nil {
		return err
	}
	if cfg.EmptyClients != common.EMPTY_CLIENTS_RETAIN && cfg.EmptyClients != common.EMPTY_CLIENTS_EXCLUDE {
		return configError("emptyClients must be %q or %q, got %q", common.EMPTY_CLIENTS_RETAIN,
			common.EMPTY_CLIENTS_EXCLUDE, cfg.EmptyClients)
	}
	if cfg.Weighting != common.WEIGHTING_UNIFORM && cfg.Weighting != common.WEIGHTING_SAMPLES {
		return configError("weighting must be %q or %q, got %q", common.WEIGHTING_UNIFORM,
			common.WEIGHTING_SAMPLES, cfg.Weighting)
	}
	if cfg.Device != common.DEVICE_CPU && cfg.Device != common.DEVICE_CUDA {
		return configError("device must be %q or %q, got %q", common.DEVICE_CPU, common.DEVICE_CUDA, cfg.Device)
	}
	if cfg.RoundTimeout < 0 || cfg.MaxParallelClients < 0 {
		return configError("roundTimeout and maxParallelClients must not be negative")
	}
	if cfg.OutputPath == "" {
		return configError("outputPath must be set")
	}
	if hclog.LevelFromString(cfg.LogLevel) == hclog.NoLevel {
		return configError("unknown logLevel %q", cfg.LogLevel)
	}

	switch cfg.Model.Architecture {
	case common.ARCHITECTURE_SOFTMAX:
	case common.ARCHITECTURE_MLP:
		if cfg.Model.HiddenSize < 1 {
			return configError("model.hiddenSize must be positive, got %d", cfg.Model.HiddenSize)
		}
	default:
		return configError("unknown model.architecture %q", cfg.Model.Architecture)
	}

	switch cfg.Dataset.Source {
	case Synthetic_DatasetSource:
	case Csv_DatasetSource:
		if cfg.Dataset.TrainCsv == "" {
			return configError("dataset.trainCsv must be set for the csv source")
		}
	default:
		return configError("unknown dataset.source %q", cfg.Dataset.Source)
	}
	if cfg.Dataset.TestCsv == "" && !(cfg.Dataset.HoldOutFraction > 0 && cfg.Dataset.HoldOutFraction < 1) {
		return configError("dataset.holdOutFraction must be in (0, 1), got %v", cfg.Dataset.HoldOutFraction)
	}

	switch cfg.Checkpoint.Backend {
	case common.CHECKPOINT_BACKEND_FILE:
	case common.CHECKPOINT_BACKEND_REDIS:
		if cfg.Checkpoint.RedisAddr == "" {
			return configError("checkpoint.redisAddr must be set for the redis backend")
		}
	default:
		return configError("unknown checkpoint.backend %q", cfg.Checkpoint.Backend)
	}

	switch cfg.Transport.Type {
	case common.TRANSPORT_LOCAL:
	case common.TRANSPORT_NATS:
		if cfg.Transport.NatsUrl == "" && !cfg.Transport.Embedded {
			return configError("transport.natsUrl must be set unless transport.embedded is true")
		}
	default:
		return configError("unknown transport.type %q", cfg.Transport.Type)
	}

	return cfg.Cost.Validate()
}

// ResolveDevice returns the device the run executes on. Only the CPU is
// available; cuda falls back to it with a warning.
func (cfg *FlConfiguration) ResolveDevice(logger hclog.Logger) string {
	if cfg.Device == common.DEVICE_CUDA {
		logger.Warn("cuda is not available, falling back to cpu")
	}
	logger.Info(fmt.Sprintf("Using device: %s", common.DEVICE_CPU))
	return common.DEVICE_CPU
}

// LoadFile reads a YAML configuration over the defaults and validates it.
func LoadFile(path string) (*FlConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

func Parse(data []byte) (*FlConfiguration, error) {
	cfg := DecodeTarget()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %s", common.ErrConfiguration, err.Error())
	}

	cfg.ResolveDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", common.ErrConfiguration, fmt.Sprintf(format, args...))
}
