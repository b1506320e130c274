package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
)

// FileStore keeps checkpoints as JSON documents on the local filesystem.
type FileStore struct {
	architecture string
	logger       hclog.Logger
}

func NewFileStore(architecture string, logger hclog.Logger) *FileStore {
	return &FileStore{architecture: architecture, logger: logger}
}

func (fs *FileStore) Save(ctx context.Context, params *model.ParameterStore, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(params, fs.architecture)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	if err := writeFileAtomic(path, data, 0644); err != nil {
		fs.logger.Error("Error saving model", "path", path, "error", err)
		return fmt.Errorf("save checkpoint %s: %w", path, err)
	}

	fs.logger.Info(fmt.Sprintf("Model saved successfully to %s", path))
	return nil
}

func (fs *FileStore) Load(ctx context.Context, path string, expected model.Schema) (*model.ParameterStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrCheckpointNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	return decode(data, fs.architecture, expected)
}

// writeFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over filename, so readers never observe a partial
// checkpoint.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir, name := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	tmpfile, err := os.CreateTemp(dir, name+"-*.tmp")
	if err != nil {
		return err
	}

	tmpname := tmpfile.Name()
	defer func() {
		tmpfile.Close()
		os.Remove(tmpname)
	}()

	n, err := tmpfile.Write(data)
	if err != nil {
		return err
	}
	if n < len(data) {
		return errors.New("short write")
	}
	if err := tmpfile.Chmod(perm); err != nil {
		return err
	}
	if err := tmpfile.Sync(); err != nil {
		return err
	}
	if err := tmpfile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpname, filename)
}
