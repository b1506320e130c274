package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// Store persists and restores global parameter stores.
type Store interface {
	Save(ctx context.Context, params *model.ParameterStore, path string) error
	// Load fails with ErrCheckpointNotFound when nothing is stored at path and
	// with ErrSchemaMismatch when the stored names or shapes differ from expected.
	Load(ctx context.Context, path string, expected model.Schema) (*model.ParameterStore, error)
}

type document struct {
	Version      int                   `json:"version"`
	Architecture string                `json:"architecture"`
	SavedAt      time.Time             `json:"savedAt"`
	Params       *model.ParameterStore `json:"params"`
}

func encode(params *model.ParameterStore, architecture string) ([]byte, error) {
	if !params.AllFinite() {
		return nil, fmt.Errorf("refusing to checkpoint non-finite parameters")
	}

	return json.Marshal(document{
		Version:      common.CHECKPOINT_FORMAT_VERSION,
		Architecture: architecture,
		SavedAt:      time.Now().UTC(),
		Params:       params,
	})
}

func decode(data []byte, architecture string, expected model.Schema) (*model.ParameterStore, error) {
	doc := document{Params: model.NewParameterStore()}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if doc.Version != common.CHECKPOINT_FORMAT_VERSION {
		return nil, fmt.Errorf("unsupported checkpoint version %d", doc.Version)
	}
	if architecture != "" && doc.Architecture != architecture {
		return nil, fmt.Errorf("%w: checkpoint holds a %q model, expected %q", common.ErrSchemaMismatch,
			doc.Architecture, architecture)
	}
	if err := expected.Check(doc.Params); err != nil {
		return nil, err
	}

	return doc.Params, nil
}
