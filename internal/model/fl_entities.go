package model

import "time"

// RoundRecord is the immutable summary of one completed round.
type RoundRecord struct {
	RoundIndex             int             `json:"roundIndex"`
	SelectedClientIDs      []int           `json:"selectedClientIds"`
	ParticipatingClientIDs []int           `json:"participatingClientIds"`
	ExcludedClients        map[int]string  `json:"excludedClients,omitempty"`
	ClientLosses           map[int]float64 `json:"clientLosses"`
	Weights                map[int]float64 `json:"weights"`
	GlobalAccuracy         float64         `json:"globalAccuracy"`
	GlobalLoss             float64         `json:"globalLoss"`
	MeanInferenceTime      time.Duration   `json:"meanInferenceTime"`
	CommunicationCost      float64         `json:"communicationCost"`
	Duration               time.Duration   `json:"duration"`
	CompletedAt            time.Time       `json:"completedAt"`
}

type ClientUtility struct {
	DatasetSizeScore      float64
	DataDistribution      map[int]int64
	DataDistributionScore float64
}
