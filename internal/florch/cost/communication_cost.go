package cost

import "github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"

const bytesPerMegabyte = 1024 * 1024

// ModelSizeMB is the wire size of params in megabytes.
func ModelSizeMB(params *model.ParameterStore) float64 {
	return float64(params.NumBytes()) / bytesPerMegabyte
}

// GetGlobalRoundCost is the model traffic of one round in megabytes: every
// selected client downloads the global model and uploads its update, and
// after aggregation the new global model is pushed to all clients.
func GetGlobalRoundCost(modelSizeMB float64, numSelected int, numClients int) float64 {
	return modelSizeMB * float64(2*numSelected+numClients)
}
