package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/config"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/log"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/substrate"
)

// app holds what every command shares: the logger, the loaded
// configuration and the flags overriding it.
type app struct {
	lg  log.Logger
	cfg config.Config

	url       string
	preset    string
	blockHash string
}

func newRootCmd(lg log.Logger) *cobra.Command {
	a := &app{lg: lg}

	cmd := &cobra.Command{
		Use:   "subtensor",
		Short: "Query a Bittensor or other Substrate node",
		Long: `subtensor reads chain state through a node's JSON-RPC websocket
interface, decoding values with the runtime metadata of the queried block.

Configuration comes from SUBSTRATE_* environment variables and an optional
.env file in $SUBSTRATE_CONFIG_DIR_PATH. Flags override both.

Examples:
  subtensor runtime
  subtensor storage System Account 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY
  subtensor storage SubtensorModule Stake --map
  subtensor constant Balances ExistentialDeposit
  subtensor address //Alice`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.lg)
			if err != nil {
				return err
			}
			log.SetupIPFSLogging(cfg.Log.Level)

			if a.url != "" {
				cfg.URL = a.url
			}
			if a.preset != "" {
				cfg.Preset = a.preset
			}
			a.cfg = cfg
			return cfg.Validate()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.url, "url", "", "node websocket endpoint (default $SUBSTRATE_URL)")
	flags.StringVar(&a.preset, "preset", "", "type registry preset (default $SUBSTRATE_TYPE_REGISTRY_PRESET)")
	flags.StringVar(&a.blockHash, "block", "", "block hash to query at (default best block)")

	cmd.AddCommand(
		newRuntimeCmd(a),
		newStorageCmd(a),
		newConstantCmd(a),
		newAddressCmd(a),
	)
	return cmd
}

// connect opens a session and hands it to fn, closing it afterwards.
func (a *app) connect(ctx context.Context, fn func(context.Context, *substrate.Client) error) error {
	ctx = log.SetContextLogger(ctx, a.lg)
	client, err := substrate.Connect(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			a.lg.Warn("failed to close session", "error", err)
		}
	}()
	return fn(ctx, client)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
