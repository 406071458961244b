// Package gateway connects the client to the user's wallet. It owns the
// transitions of the wallet session and hands out call handles bound to the
// session they were derived from.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/session"
	"github.com/greenstake/greenstake-go/pkg/walletProvider"
	"go.uber.org/zap"
)

// UnsupportedNetworkError is the session error while the wallet is on a network
// other than the supported one.
type UnsupportedNetworkError struct {
	ChainID   uint64
	Supported uint64
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("%s: wallet is on chain %d, expected %d", clientErrors.ErrUnsupportedNetwork, e.ChainID, e.Supported)
}

func (e *UnsupportedNetworkError) Unwrap() error {
	return clientErrors.ErrUnsupportedNetwork
}

// ReadInvalidator drops cached reads when the session identity changes.
type ReadInvalidator interface {
	InvalidateAccounts()
	InvalidateAll()
}

type GatewayConfig struct {
	SupportedChainID uint64
}

// Gateway is the only writer of the session, together with its event bridge.
type Gateway struct {
	config   *GatewayConfig
	provider walletProvider.Provider
	session  *session.Session
	cache    ReadInvalidator
	logger   *zap.Logger
	bridge   *bridge

	// mu serialises session transitions. It is never held across provider calls.
	mu          sync.Mutex
	lastAccount *common.Address
	network     uint64
	// While connecting, wallet events are held and folded into the result of Connect.
	connecting bool
	held       heldEvents

	listenMu  sync.Mutex
	listening atomic.Bool
}

type heldEvents struct {
	accounts    []common.Address
	accountsSet bool
	network     *uint64
}

// NewGateway builds a gateway. provider may be nil when no wallet is installed.
func NewGateway(cfg *GatewayConfig, provider walletProvider.Provider, sess *session.Session, cache ReadInvalidator, l *zap.Logger) *Gateway {
	g := &Gateway{
		config:   cfg,
		provider: provider,
		session:  sess,
		cache:    cache,
		logger:   l,
	}
	g.bridge = &bridge{gw: g}
	return g
}

// Connect asks the wallet for accounts and binds the session to the first one.
func (g *Gateway) Connect(ctx context.Context) (session.WalletSession, error) {
	if g.provider == nil {
		snap := g.transition(func() session.WalletSession {
			return g.session.SetError(clientErrors.ErrWalletUnavailable)
		})
		return snap, clientErrors.ErrWalletUnavailable
	}

	g.transition(func() session.WalletSession {
		g.lastAccount = nil
		g.connecting = true
		g.held = heldEvents{}
		return g.session.SetConnecting()
	})

	// Listeners go up before the prompt so nothing announced while it is open is lost.
	if err := g.listen(); err != nil {
		return g.fail(fmt.Errorf("failed to register wallet listeners: %w", err))
	}

	accounts, err := g.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = &walletProvider.RPCError{Code: walletProvider.CodeUserRejected, Message: "no accounts authorized"}
	}
	if err != nil {
		return g.fail(classify(err))
	}

	chainID, err := g.provider.ChainID(ctx)
	if err != nil {
		return g.fail(classify(err))
	}

	account := accounts[0]
	g.mu.Lock()
	held := g.held
	g.connecting = false
	g.held = heldEvents{}
	if held.accountsSet {
		if len(held.accounts) == 0 {
			err := fmt.Errorf("%w: accounts withdrawn while connecting", clientErrors.ErrUserRejected)
			g.lastAccount = nil
			snap := g.session.SetError(err)
			g.mu.Unlock()
			return g.abandon(snap, err)
		}
		account = held.accounts[0]
	}
	if held.network != nil {
		chainID = *held.network
	}
	g.lastAccount = &account
	g.network = chainID
	snap := g.apply()
	g.mu.Unlock()
	if held.network != nil {
		g.cache.InvalidateAll()
	} else {
		g.cache.InvalidateAccounts()
	}

	if snap.State == session.Error {
		g.logger.Sugar().Warnw("Wallet connected on unsupported network",
			zap.Uint64("chainId", chainID),
			zap.String("account", account.Hex()),
		)
		return snap, snap.Err
	}
	g.logger.Sugar().Infow("Wallet connected",
		zap.String("account", account.Hex()),
		zap.Uint64("chainId", chainID),
	)
	return snap, nil
}

// Disconnect drops the wallet listeners and resets the session.
func (g *Gateway) Disconnect() error {
	err := g.unlisten()
	g.mu.Lock()
	g.lastAccount = nil
	g.connecting = false
	g.held = heldEvents{}
	g.session.SetDisconnected()
	g.mu.Unlock()
	g.cache.InvalidateAccounts()
	g.logger.Sugar().Infow("Wallet disconnected")
	return err
}

// CurrentSession returns a snapshot of the session.
func (g *Gateway) CurrentSession() session.WalletSession {
	return g.session.Snapshot()
}

// Session returns the session the gateway writes to.
func (g *Gateway) Session() *session.Session {
	return g.session
}

func (g *Gateway) transition(fn func() session.WalletSession) session.WalletSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}

func (g *Gateway) fail(err error) (session.WalletSession, error) {
	snap := g.transition(func() session.WalletSession {
		g.lastAccount = nil
		g.connecting = false
		g.held = heldEvents{}
		return g.session.SetError(err)
	})
	return g.abandon(snap, err)
}

// abandon drops the listeners of a connection attempt that failed.
func (g *Gateway) abandon(snap session.WalletSession, err error) (session.WalletSession, error) {
	if unlistenErr := g.unlisten(); unlistenErr != nil {
		g.logger.Sugar().Warnw("Failed to remove wallet listeners", zap.Error(unlistenErr))
	}
	g.logger.Sugar().Warnw("Wallet connection failed", zap.Error(err))
	return snap, err
}

// apply derives the session from the last announced account and network. Callers hold mu.
func (g *Gateway) apply() session.WalletSession {
	current := g.session.Snapshot()
	switch {
	case g.lastAccount == nil:
		if current.State == session.Disconnected {
			return current
		}
		return g.session.SetDisconnected()
	case g.network != g.config.SupportedChainID:
		var unsupported *UnsupportedNetworkError
		if current.State == session.Error && errors.As(current.Err, &unsupported) && unsupported.ChainID == g.network {
			return current
		}
		return g.session.SetError(g.unsupported(g.network))
	case current.State == session.Connected && *current.NetworkID == g.network:
		return g.session.SetAccount(*g.lastAccount)
	default:
		return g.session.SetConnected(*g.lastAccount, g.network)
	}
}

func (g *Gateway) unsupported(chainID uint64) error {
	return &UnsupportedNetworkError{ChainID: chainID, Supported: g.config.SupportedChainID}
}

// listen replaces any listeners registered earlier with the bridge's.
func (g *Gateway) listen() error {
	g.listenMu.Lock()
	defer g.listenMu.Unlock()

	if g.listening.Swap(false) {
		if err := g.provider.RemoveListeners(); err != nil {
			return err
		}
	}
	if err := g.provider.OnAccountsChanged(g.bridge.accountsChanged); err != nil {
		return err
	}
	if err := g.provider.OnChainChanged(g.bridge.chainChanged); err != nil {
		return err
	}
	if err := g.provider.OnDisconnect(g.bridge.disconnected); err != nil {
		return err
	}
	g.listening.Store(true)
	return nil
}

func (g *Gateway) unlisten() error {
	if g.provider == nil || !g.listening.CompareAndSwap(true, false) {
		return nil
	}
	return g.provider.RemoveListeners()
}

// classify maps provider failures onto the client's error kinds.
func classify(err error) error {
	var rpcErr *walletProvider.RPCError
	if !errors.As(err, &rpcErr) {
		return err
	}
	switch rpcErr.Code {
	case walletProvider.CodeUserRejected, walletProvider.CodeUnauthorized:
		return fmt.Errorf("%w: %s", clientErrors.ErrUserRejected, rpcErr.Message)
	case walletProvider.CodeDisconnected:
		return fmt.Errorf("%w: %s", clientErrors.ErrWalletUnavailable, rpcErr.Message)
	case walletProvider.CodeUnrecognizedChain:
		return fmt.Errorf("%w: %s", clientErrors.ErrUnsupportedNetwork, rpcErr.Message)
	default:
		return err
	}
}

// Classify maps an error returned by a wallet provider onto the client's error kinds.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	return classify(err)
}
