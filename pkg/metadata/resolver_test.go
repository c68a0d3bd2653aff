package metadata_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata/metadatatest"
)

// mockCaller answers the handful of methods the resolver issues and counts
// every call.
type mockCaller struct {
	mu       sync.Mutex
	calls    map[string]int
	version  metadata.RuntimeVersion
	metadata string
	err      error
	gate     chan struct{}
}

func newMockCaller() *mockCaller {
	return &mockCaller{
		calls:    make(map[string]int),
		version:  metadatatest.RuntimeVersion(),
		metadata: metadatatest.Hex(15),
	}
}

func (m *mockCaller) Call(ctx context.Context, method string, params []any, result any) error {
	m.mu.Lock()
	m.calls[method]++
	version, encoded, err, gate := m.version, m.metadata, m.err, m.gate
	m.mu.Unlock()

	if err != nil {
		return err
	}

	var res any
	switch method {
	case "chain_getBlockHash":
		res = metadatatest.GenesisHash
	case "state_getRuntimeVersion":
		res = version
	case "state_getMetadata":
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		res = encoded
	default:
		return fmt.Errorf("unexpected method %s", method)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (m *mockCaller) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockCaller) setSpecVersion(v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version.SpecVersion = v
}

func TestResolver_CachesPerSpecVersion(t *testing.T) {
	t.Parallel()

	caller := newMockCaller()
	r, err := metadata.NewResolver(caller, nil)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, metadatatest.GenesisHash, first.GenesisHash)
	assert.Equal(t, uint32(metadatatest.SpecVersion), first.Version.SpecVersion)
	assert.Equal(t, metadatatest.SpecName, first.Version.SpecName)

	second, err := r.Resolve(ctx, "0x01")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, caller.count("state_getMetadata"))
	assert.Equal(t, 1, caller.count("chain_getBlockHash"))
	assert.Equal(t, 2, caller.count("state_getRuntimeVersion"))

	caller.setSpecVersion(metadatatest.SpecVersion + 1)
	upgraded, err := r.Resolve(ctx, "")
	require.NoError(t, err)
	assert.NotSame(t, first, upgraded)
	assert.Equal(t, uint32(metadatatest.SpecVersion+1), upgraded.Version.SpecVersion)
	assert.Equal(t, 2, caller.count("state_getMetadata"))

	cached, ok := r.Cached(metadata.Key{Genesis: metadatatest.GenesisHash, SpecVersion: metadatatest.SpecVersion})
	require.True(t, ok)
	assert.Same(t, first, cached)
}

func TestResolver_ConcurrentResolveFetchesOnce(t *testing.T) {
	t.Parallel()

	caller := newMockCaller()
	caller.gate = make(chan struct{})
	r, err := metadata.NewResolver(caller, nil)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*metadata.Runtime, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = r.ForVersion(context.Background(), metadatatest.GenesisHash, metadatatest.RuntimeVersion(), "")
		}()
	}

	require.Eventually(t, func() bool { return caller.count("state_getMetadata") >= 1 }, testTimeout, testTick)
	close(caller.gate)
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, caller.count("state_getMetadata"))
}

func TestResolver_Invalidate(t *testing.T) {
	t.Parallel()

	caller := newMockCaller()
	r, err := metadata.NewResolver(caller, nil, metadata.WithCacheSize(1))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Resolve(ctx, "")
	require.NoError(t, err)

	r.Invalidate()
	_, ok := r.Cached(metadata.Key{Genesis: metadatatest.GenesisHash, SpecVersion: metadatatest.SpecVersion})
	assert.False(t, ok)

	_, err = r.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, caller.count("state_getMetadata"))
	assert.Equal(t, 2, caller.count("chain_getBlockHash"))
}

func TestResolver_Errors(t *testing.T) {
	t.Parallel()

	t.Run("caller error", func(t *testing.T) {
		t.Parallel()

		caller := newMockCaller()
		caller.err = errors.New("connection refused")
		r, err := metadata.NewResolver(caller, nil)
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, caller.err)
	})

	t.Run("bad hex", func(t *testing.T) {
		t.Parallel()

		caller := newMockCaller()
		caller.metadata = "0xzz"
		r, err := metadata.NewResolver(caller, nil)
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), "")
		assert.ErrorIs(t, err, metadata.ErrMetadataDecode)
	})

	t.Run("undecodable metadata", func(t *testing.T) {
		t.Parallel()

		caller := newMockCaller()
		caller.metadata = "0x6d65746110"
		r, err := metadata.NewResolver(caller, nil)
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), "")
		assert.ErrorIs(t, err, metadata.ErrMetadataDecode)

		// Failures are not cached.
		caller.mu.Lock()
		caller.metadata = metadatatest.Hex(14)
		caller.mu.Unlock()
		rt, err := r.Resolve(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, uint8(14), rt.MetadataVersion)
	})
}

func TestRuntimeVersion_JSON(t *testing.T) {
	t.Parallel()

	raw := `{
		"specName": "node-subtensor",
		"implName": "node-subtensor",
		"authoringVersion": 1,
		"specVersion": 205,
		"implVersion": 1,
		"apis": [["0xdf6acb689907609b", 4], ["0x37e397fc7c91f5e4", 2]],
		"transactionVersion": 1,
		"stateVersion": 1
	}`

	var v metadata.RuntimeVersion
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	assert.Equal(t, "node-subtensor", v.SpecName)
	assert.Equal(t, uint32(205), v.SpecVersion)
	assert.Equal(t, uint32(1), v.TransactionVersion)
	require.Len(t, v.APIs, 2)
	assert.Equal(t, "0xdf6acb689907609b", v.APIs[0].ID)
	assert.Equal(t, uint32(4), v.APIs[0].Version)

	out, err := json.Marshal(v.APIs[1])
	require.NoError(t, err)
	assert.JSONEq(t, `["0x37e397fc7c91f5e4", 2]`, string(out))

	var bad metadata.APIVersion
	assert.Error(t, json.Unmarshal([]byte(`["0x37e397fc7c91f5e4"]`), &bad))
}
