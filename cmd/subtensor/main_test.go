package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/log"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata/metadatatest"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/rpc/rpctest"
)

const aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

// run executes the CLI with args and decodes its JSON output.
func run(t *testing.T, out any, args ...string) error {
	t.Helper()

	t.Setenv("SUBSTRATE_CONFIG_DIR_PATH", t.TempDir())
	t.Setenv("SUBSTRATE_RPC_RECONNECT", "false")

	var buf bytes.Buffer
	cmd := newRootCmd(log.NewNoopLogger())
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), out)
}

func fixtureNode(t *testing.T) *rpctest.Node {
	t.Helper()

	node := rpctest.NewNode(t)
	node.HandleResult("chain_getBlockHash", metadatatest.GenesisHash)
	node.HandleResult("state_getRuntimeVersion", metadatatest.RuntimeVersion())
	node.HandleResult("state_getMetadata", metadatatest.Hex(14))
	node.HandleResult("system_properties", map[string]any{"ss58Format": 42})
	node.HandleResult("state_getStorage", nil)
	return node
}

func TestAddressCmd(t *testing.T) {
	var out map[string]string
	require.NoError(t, run(t, &out, "address", "//Alice"))
	assert.Equal(t, aliceSS58, out["address"])
	assert.Equal(t, "sr25519", out["scheme"])
	assert.Equal(t, "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d", out["publicKey"])

	assert.Error(t, run(t, &out, "address", "//Alice", "--scheme", "rsa"))
	assert.Error(t, run(t, &out, "address"))
}

func TestConstantCmd(t *testing.T) {
	node := fixtureNode(t)

	var deposit uint64
	require.NoError(t, run(t, &deposit, "--url", node.URL(), "constant", "Balances", "ExistentialDeposit"))
	assert.Equal(t, uint64(500), deposit)

	assert.Error(t, run(t, &deposit, "--url", node.URL(), "constant", "Balances", "Nope"))
}

func TestStorageCmd(t *testing.T) {
	node := fixtureNode(t)

	var info map[string]any
	require.NoError(t, run(t, &info, "--url", node.URL(), "storage", "System", "Account", aliceSS58))
	assert.Contains(t, info, "nonce")
	assert.Equal(t, 1, node.Count("state_getStorage"))
}

func TestRuntimeCmd(t *testing.T) {
	node := fixtureNode(t)

	var out struct {
		GenesisHash     string   `json:"genesisHash"`
		MetadataVersion uint8    `json:"metadataVersion"`
		Pallets         []string `json:"pallets"`
	}
	require.NoError(t, run(t, &out, "--url", node.URL(), "runtime"))
	assert.Equal(t, metadatatest.GenesisHash, out.GenesisHash)
	assert.Equal(t, uint8(14), out.MetadataVersion)
	assert.ElementsMatch(t, []string{"System", "Timestamp", "Balances", "SubtensorModule"}, out.Pallets)
}

func TestParseArgs(t *testing.T) {
	t.Parallel()

	got := parseArgs([]string{"7", "true", aliceSS58, "0xabcd", "-1"})
	assert.Equal(t, []any{uint64(7), true, aliceSS58, "0xabcd", "-1"}, got)
}
