package common

// Partition policies
const PARTITION_IID = "iid"
const PARTITION_NON_IID = "non_iid"

// Aggregation weighting
const WEIGHTING_UNIFORM = "uniform"
const WEIGHTING_SAMPLES = "samples"

// Empty client handling for label-skewed partitions
const EMPTY_CLIENTS_RETAIN = "retain"
const EMPTY_CLIENTS_EXCLUDE = "exclude"

// Client runtimes
const TRANSPORT_LOCAL = "local"
const TRANSPORT_NATS = "nats"

// Checkpoint backends
const CHECKPOINT_BACKEND_FILE = "file"
const CHECKPOINT_BACKEND_REDIS = "redis"

// Compute devices
const DEVICE_CPU = "cpu"
const DEVICE_CUDA = "cuda"

// Model architectures
const ARCHITECTURE_SOFTMAX = "softmax"
const ARCHITECTURE_MLP = "mlp"

// NATS subjects
const CLIENT_TRAIN_SUBJECT_PREFIX = "fl.client"
const CLIENT_TRAIN_SUBJECT_SUFFIX = "train"
const CLIENT_EVALUATE_SUBJECT_SUFFIX = "evaluate"
const CLIENT_CANCEL_SUBJECT = "fl.client.cancel"

// Events
const ROUND_COMPLETED_EVENT_TYPE = "RoundCompleted"
const FL_FINISHED_EVENT_TYPE = "FlFinished"

// Exit codes carried by FlFinished events
const FL_EXIT_COMPLETED = 0
const FL_EXIT_STOPPED = 1
const FL_EXIT_FAILED = 2

// Aggregation weights must sum to one within this tolerance
const WEIGHT_SUM_TOLERANCE = 1e-6

// Checkpoint document format version
const CHECKPOINT_FORMAT_VERSION = 1
