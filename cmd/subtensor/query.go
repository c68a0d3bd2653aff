package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/substrate"
)

func newRuntimeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runtime",
		Short: "Show the runtime version and pallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect(cmd.Context(), func(ctx context.Context, client *substrate.Client) error {
				rt, err := client.Runtime(ctx, a.blockHash)
				if err != nil {
					return err
				}
				props, err := client.Properties(ctx)
				if err != nil {
					return err
				}

				pallets := make([]string, 0, len(rt.Pallets))
				for _, p := range rt.Pallets {
					pallets = append(pallets, p.Name)
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"genesisHash":     rt.GenesisHash,
					"version":         rt.Version,
					"metadataVersion": rt.MetadataVersion,
					"properties":      props,
					"pallets":         pallets,
				})
			})
		},
	}
}

func newStorageCmd(a *app) *cobra.Command {
	var (
		asMap    bool
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "storage MODULE ITEM [ARG...]",
		Short: "Read a storage entry",
		Long: `Read a storage entry. Arguments are the entry's map keys: decimal
numbers, true/false, ss58 addresses, 0x-hex bytes or plain text.

With --map the arguments are a key prefix and every matching entry of
the map is listed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, item := args[0], args[1]
			keyArgs := parseArgs(args[2:])

			return a.connect(cmd.Context(), func(ctx context.Context, client *substrate.Client) error {
				if asMap {
					entries, err := client.QueryMap(ctx, module, item, keyArgs, a.blockHash, pageSize)
					if err != nil {
						return err
					}
					out := make([]map[string]any, 0, len(entries))
					for _, e := range entries {
						keys := make([]any, len(e.Args))
						for i, arg := range e.Args {
							keys[i] = arg.Interface()
						}
						out = append(out, map[string]any{"key": e.Key.Hex(), "args": keys, "value": e.Value.Interface()})
					}
					return printJSON(cmd.OutOrStdout(), out)
				}

				value, found, err := client.QueryStorage(ctx, module, item, keyArgs, a.blockHash)
				if err != nil {
					return err
				}
				if !found {
					a.lg.Info("no value stored", "module", module, "item", item)
				}
				return printJSON(cmd.OutOrStdout(), value.Interface())
			})
		},
	}
	cmd.Flags().BoolVar(&asMap, "map", false, "list the map entries under the given key prefix")
	cmd.Flags().IntVar(&pageSize, "page-size", substrate.DefaultPageSize, "keys fetched per request with --map")
	return cmd
}

func newConstantCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "constant MODULE NAME",
		Short: "Show a pallet constant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd.Context(), func(ctx context.Context, client *substrate.Client) error {
				value, err := client.Constant(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), value.Interface())
			})
		},
	}
}

// parseArgs turns command line key arguments into values the client
// converts to the entry's key types.
func parseArgs(args []string) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if u, err := strconv.ParseUint(arg, 10, 64); err == nil {
			out[i] = u
			continue
		}
		switch arg {
		case "true":
			out[i] = true
		case "false":
			out[i] = false
		default:
			out[i] = arg
		}
	}
	return out
}
