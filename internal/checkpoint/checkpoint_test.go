package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testParams(t *testing.T) *model.ParameterStore {
	t.Helper()
	params := model.NewParameterStore()
	w, err := model.NewTensorFromData([]int{2, 3}, []float64{0.1, -0.2, 0.3, 1e-9, 5, -7.25})
	require.NoError(t, err)
	b, err := model.NewTensorFromData([]int{2}, []float64{0, 1})
	require.NoError(t, err)
	params.Set("linear.weight", w)
	params.Set("linear.bias", b)
	return params
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore("softmax", hclog.NewNullLogger())
	params := testParams(t)
	path := filepath.Join(t.TempDir(), "nested", "global_model.json")

	require.NoError(t, store.Save(context.Background(), params, path))

	loaded, err := store.Load(context.Background(), path, params.Schema())
	require.NoError(t, err)
	require.True(t, params.Equal(loaded))
	require.Equal(t, params.Names(), loaded.Names())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore("softmax", hclog.NewNullLogger())

	_, err := store.Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"), testParams(t).Schema())
	require.ErrorIs(t, err, common.ErrCheckpointNotFound)
}

func TestFileStoreLoadSchemaMismatch(t *testing.T) {
	store := NewFileStore("softmax", hclog.NewNullLogger())
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, store.Save(context.Background(), testParams(t), path))

	t.Run("shape", func(t *testing.T) {
		expected := model.Schema{
			{Name: "linear.weight", Shape: []int{3, 3}},
			{Name: "linear.bias", Shape: []int{2}},
		}
		_, err := store.Load(context.Background(), path, expected)
		require.ErrorIs(t, err, common.ErrSchemaMismatch)
	})

	t.Run("architecture", func(t *testing.T) {
		_, err := NewFileStore("mlp", hclog.NewNullLogger()).Load(context.Background(), path, testParams(t).Schema())
		require.ErrorIs(t, err, common.ErrSchemaMismatch)
	})
}

func TestFileStoreRejectsNonFinite(t *testing.T) {
	store := NewFileStore("softmax", hclog.NewNullLogger())
	params := testParams(t)
	b, _ := params.Get("linear.bias")
	b.Data[0] = 1 / b.Data[0]

	path := filepath.Join(t.TempDir(), "model.json")
	require.Error(t, store.Save(context.Background(), params, path))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store := NewRedisStore(client, "fl-sim-test:", "softmax", hclog.NewNullLogger())
	params := testParams(t)
	path := "checkpoint-" + time.Now().Format("150405.000000")
	defer client.Del(context.Background(), "fl-sim-test:"+path)

	require.NoError(t, store.Save(context.Background(), params, path))
	loaded, err := store.Load(context.Background(), path, params.Schema())
	require.NoError(t, err)
	require.True(t, params.Equal(loaded))

	_, err = store.Load(context.Background(), path+"-absent", params.Schema())
	require.ErrorIs(t, err, common.ErrCheckpointNotFound)
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer client.Close()

	store := NewRedisStore(client, "", "softmax", hclog.NewNullLogger())
	_, err := store.Load(context.Background(), "model", testParams(t).Schema())
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrCheckpointNotFound)
}

func TestSchedulerSavesOncePerRound(t *testing.T) {
	store := NewFileStore("softmax", hclog.NewNullLogger())
	params := testParams(t)
	path := filepath.Join(t.TempDir(), "latest.json")

	var saves atomic.Int32
	sched, err := NewScheduler("@every 1s", store, path, func() (*model.ParameterStore, int) {
		return params.Clone(), 3
	}, hclog.NewNullLogger())
	require.NoError(t, err)
	sched.OnSaved(func() { saves.Add(1) })

	sched.Start()
	require.Eventually(t, func() bool { return saves.Load() == 1 }, 5*time.Second, 50*time.Millisecond)
	time.Sleep(1500 * time.Millisecond)
	sched.Stop()

	require.Equal(t, int32(1), saves.Load())
	loaded, err := store.Load(context.Background(), path, params.Schema())
	require.NoError(t, err)
	require.True(t, params.Equal(loaded))
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	_, err := NewScheduler("not a schedule", NewFileStore("softmax", hclog.NewNullLogger()), "x",
		func() (*model.ParameterStore, int) { return nil, 0 }, hclog.NewNullLogger())
	require.ErrorIs(t, err, common.ErrConfiguration)
}
