// Package sign provides the keypairs accounts sign extrinsics with.
//
// Three schemes are supported, matching the MultiSignature variants of
// substrate runtimes:
//
//   - Ed25519: deterministic edwards-curve signatures
//   - Sr25519: schnorrkel signatures under the "substrate" context
//   - Ecdsa: secp256k1 signatures over the blake2-256 hash of the message
//
// Keypairs are created from a 32-byte seed, a bip39 mnemonic or a secret URI
// with hard ("//") and soft ("/") derivation junctions:
//
//	kp, err := sign.FromURI("//Alice", sign.Sr25519)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer kp.Zero()
//
//	sig, err := kp.Sign(payload)
//	fmt.Println("Address:", kp.SS58Address())
//
// The private material of a Keypair is never exposed through its methods and
// can be wiped with Zero once the keypair is no longer needed.
package sign
