package main

import (
	"github.com/spf13/cobra"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/sign"
)

func newAddressCmd(a *app) *cobra.Command {
	var scheme string
	cmd := &cobra.Command{
		Use:   "address URI",
		Short: "Derive the address of a secret URI",
		Long: `Derive the account of a secret URI such as "//Alice" or
"<mnemonic>//hard/soft///password" and print its ss58 address in the
configured format. Nothing is sent to the node.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sign.ParseScheme(scheme)
			if err != nil {
				return err
			}
			kp, err := sign.FromURI(args[0], s, sign.WithSS58Format(a.cfg.SS58Format))
			if err != nil {
				return err
			}
			defer kp.Zero()

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"scheme":    kp.Scheme().String(),
				"publicKey": kp.AccountID().Hex(),
				"address":   kp.SS58Address(),
			})
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", sign.Sr25519.String(), "signature scheme: sr25519, ed25519 or ecdsa")
	return cmd
}
