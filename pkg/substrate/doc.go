// Package substrate is a client for Substrate based chains, Bittensor's
// subtensor in particular. It binds the transport, the metadata resolver,
// the storage key builder and the extrinsic builder behind one Client:
//
//	client, err := substrate.NewBittensor(ctx)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	account, found, err := client.QueryStorage(ctx, "System", "Account", []any{address}, "")
//
// Every method resolves the runtime of the block it works on, so values
// are always decoded with the metadata that produced them. Runtimes are
// cached per spec version and dropped after a reconnect.
package substrate
