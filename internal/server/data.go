package server

import (
	"encoding/json"
	"io"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
)

func toJSON(i interface{}, w io.Writer) error {
	e := json.NewEncoder(w)
	return e.Encode(i)
}

func fromJSON(i interface{}, r io.Reader) error {
	d := json.NewDecoder(r)
	d.DisallowUnknownFields()
	return d.Decode(i)
}

// StartFlRequest carries the run configuration. Omitted fields take their
// defaults.
type StartFlRequest struct {
	Configuration flconfig.FlConfiguration `json:"configuration"`
}

type StartFlResponse struct {
	RunId string `json:"runId"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
