package model

import "time"

// ClientState is the coordinator's view of one participant.
type ClientState struct {
	ClientID      int
	Shard         *Shard
	LocalParams   *ParameterStore
	LearningRate  float64
	ClientUtility ClientUtility
}

// TrainTask is the broadcast-global message: a private snapshot of the global
// parameters plus the local training hyperparameters for one round.
type TrainTask struct {
	Round        int             `json:"round"`
	ClientID     int             `json:"clientId"`
	Params       *ParameterStore `json:"params"`
	Epochs       int             `json:"epochs"`
	LearningRate float64         `json:"learningRate"`
}

// ClientUpdate is the submit-update message returned by a client.
type ClientUpdate struct {
	Round      int             `json:"round"`
	ClientID   int             `json:"clientId"`
	Params     *ParameterStore `json:"params"`
	NumSamples int             `json:"numSamples"`
	Loss       float64         `json:"loss"`
	Duration   time.Duration   `json:"duration"`
}

// EvaluateTask asks a client to score params on its own shard.
type EvaluateTask struct {
	ClientID int             `json:"clientId"`
	Params   *ParameterStore `json:"params"`
}

type ClientEvaluation struct {
	ClientID   int     `json:"clientId"`
	Accuracy   float64 `json:"accuracy"`
	Loss       float64 `json:"loss"`
	NumSamples int     `json:"numSamples"`
}
