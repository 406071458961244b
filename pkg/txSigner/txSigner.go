// Package txSigner provides the key backends a local wallet signs transactions with.
// Every backend produces go-ethereum TransactOpts, either for immediate broadcast
// or in no-send mode so the caller decides when the signed transaction hits the network.
package txSigner

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ITransactionSigner defines the interface for signing Ethereum transactions.
type ITransactionSigner interface {
	// GetTransactOpts returns bind.TransactOpts configured for the signer.
	//
	// Parameters:
	//   - ctx: Context for the operation
	//   - chainID: The chain ID for the target blockchain
	//
	// Returns:
	//   - *bind.TransactOpts: Configured transaction options for the signer
	//   - error: An error if transaction options cannot be created
	GetTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)

	// GetNoSendTransactOpts is GetTransactOpts with NoSend set: the bound
	// contract signs the transaction and returns it without broadcasting.
	GetNoSendTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)

	// GetAddress returns the Ethereum address associated with this signer.
	GetAddress() (common.Address, error)
}

func noSend(opts *bind.TransactOpts, err error) (*bind.TransactOpts, error) {
	if err != nil {
		return nil, err
	}
	opts.NoSend = true
	return opts, nil
}
