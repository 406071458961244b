// Package walletProvider describes the wallet a user connects with. The client
// never depends on a concrete wallet: it sees a capability set modelled on
// EIP-1193 (request accounts, query the chain, subscribe to account and chain
// changes, drop listeners) plus the ability to produce signing options.
package walletProvider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/chainManager"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
)

// RPCError is the error a provider returns for a refused request.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Provider is the capability set of a wallet.
type Provider interface {
	// RequestAccounts asks the user to authorize accounts. The first account is the selected one.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// ChainID returns the network the wallet is currently on.
	ChainID(ctx context.Context) (uint64, error)

	// OnAccountsChanged registers fn for account list changes.
	OnAccountsChanged(fn func(accounts []common.Address)) error
	// OnChainChanged registers fn for network switches.
	OnChainChanged(fn func(chainID uint64)) error
	// OnDisconnect registers fn for the wallet dropping the connection.
	OnDisconnect(fn func(err error)) error
	// RemoveListeners drops every listener registered through this provider.
	// It may be called from inside a listener.
	RemoveListeners() error

	// Backend returns the RPC connection of the wallet's current network.
	Backend() (chainManager.EthClientInterface, error)
	// TransactOpts returns no-send signing options for account on chainID.
	// Signing prompts the user; a refusal surfaces as CodeUserRejected.
	TransactOpts(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error)
}
