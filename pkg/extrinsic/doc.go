// Package extrinsic composes calls and builds the extrinsics that carry
// them to a node.
//
// A signed extrinsic is assembled from runtime metadata: the call is
// encoded against the argument types of the pallet call, the signed
// extensions the runtime lists contribute their extra and additional
// signed data, and the resulting payload is signed by a sign.Signer.
// Payloads longer than 256 bytes are signed through their blake2-256
// hash.
//
// Example:
//
//	call, err := extrinsic.NewCall(rt, "Balances", "transfer_keep_alive", scale.Composite(
//		scale.Named("dest", scale.VariantTuple("Id", scale.Bytes(dest[:]))),
//		scale.Named("value", scale.Uint(1_000_000_000)),
//	))
//	if err != nil {
//		return err
//	}
//	ext, err := extrinsic.NewSigned(rt, call, keypair, extrinsic.Options{
//		Nonce:       nonce,
//		Era:         extrinsic.NewMortalEra(head, 64),
//		BlockHash:   headHash,
//		GenesisHash: genesis,
//	})
//	if err != nil {
//		return err
//	}
//	hexTx := ext.Hex()
package extrinsic
