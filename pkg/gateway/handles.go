package gateway

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/chainManager"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/session"
)

// Handle is anything bound to a session epoch.
type Handle interface {
	SessionEpoch() uint64
}

// ReadHandle reads chain state through the connected wallet.
type ReadHandle struct {
	Backend chainManager.EthClientInterface
	Account common.Address
	ChainID uint64
	epoch   uint64
}

func (h *ReadHandle) SessionEpoch() uint64 {
	return h.epoch
}

// SignHandle additionally signs transactions as Account.
type SignHandle struct {
	ReadHandle
	gw *Gateway
}

// TransactOpts asks the wallet for no-send signing options.
func (h *SignHandle) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if err := h.gw.Validate(h); err != nil {
		return nil, err
	}
	opts, err := h.gw.provider.TransactOpts(ctx, h.Account, new(big.Int).SetUint64(h.ChainID))
	if err != nil {
		return nil, classify(err)
	}
	return opts, nil
}

// ReadHandle derives a read handle from the current session.
func (g *Gateway) ReadHandle() (*ReadHandle, error) {
	snap := g.session.Snapshot()
	if err := usable(snap); err != nil {
		return nil, err
	}
	backend, err := g.provider.Backend()
	if err != nil {
		return nil, classify(err)
	}
	return &ReadHandle{
		Backend: backend,
		Account: *snap.Account,
		ChainID: *snap.NetworkID,
		epoch:   snap.Epoch,
	}, nil
}

// SignHandle derives a signing handle from the current session.
func (g *Gateway) SignHandle() (*SignHandle, error) {
	rh, err := g.ReadHandle()
	if err != nil {
		return nil, err
	}
	return &SignHandle{ReadHandle: *rh, gw: g}, nil
}

// Validate rejects a handle derived from an earlier session.
func (g *Gateway) Validate(h Handle) error {
	current := g.session.Epoch()
	if h.SessionEpoch() != current {
		return fmt.Errorf("%w: derived at epoch %d, session is at %d", clientErrors.ErrStaleHandle, h.SessionEpoch(), current)
	}
	return nil
}

// usable reports why snap cannot back a handle. In the Error state the session
// error is carried alongside ErrNotConnected.
func usable(snap session.WalletSession) error {
	switch snap.State {
	case session.Connected:
		return nil
	case session.Error:
		return fmt.Errorf("%w: %w", clientErrors.ErrNotConnected, snap.Err)
	default:
		return clientErrors.ErrNotConnected
	}
}
