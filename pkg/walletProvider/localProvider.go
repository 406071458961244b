package walletProvider

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/greenstake/greenstake-go/pkg/chainManager"
	"github.com/greenstake/greenstake-go/pkg/txSigner"
	"go.uber.org/zap"
)

const (
	topicAccountsChanged = "accountsChanged"
	topicChainChanged    = "chainChanged"
	topicDisconnect      = "disconnect"
)

// RequestKind tells an Approver what it is asked to approve.
type RequestKind int

const (
	RequestConnect RequestKind = iota
	RequestSignTransaction
)

// Request is one approval prompt.
type Request struct {
	Kind     RequestKind
	Accounts []common.Address
	Tx       *types.Transaction
}

// Approver decides approval prompts on behalf of the user.
type Approver func(ctx context.Context, req Request) (bool, error)

// AutoApprove approves every request.
func AutoApprove(context.Context, Request) (bool, error) { return true, nil }

type listener struct {
	topic string
	fn    interface{}
}

// LocalProvider is a headless wallet: keys come from txSigner backends, network
// access from a chain manager, and events are delivered synchronously through an
// event bus in the order they are emitted.
type LocalProvider struct {
	chains   chainManager.IChainManager
	bus      evbus.Bus
	approver Approver
	logger   *zap.Logger

	mu         sync.Mutex
	chainID    uint64
	signers    map[common.Address]txSigner.ITransactionSigner
	available  []common.Address
	authorized []common.Address
	listeners  []listener
	publishing int
	detached   []listener
}

// Option configures a LocalProvider.
type Option func(*LocalProvider)

// WithApprover sets the approval policy. The default approves everything.
func WithApprover(a Approver) Option {
	return func(p *LocalProvider) {
		p.approver = a
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *LocalProvider) {
		p.logger = l
	}
}

// NewLocalProvider creates a wallet on chainID holding the given signers.
func NewLocalProvider(chains chainManager.IChainManager, chainID uint64, signers []txSigner.ITransactionSigner, opts ...Option) (*LocalProvider, error) {
	p := &LocalProvider{
		chains:   chains,
		bus:      evbus.New(),
		approver: AutoApprove,
		logger:   zap.NewNop(),
		chainID:  chainID,
		signers:  make(map[common.Address]txSigner.ITransactionSigner, len(signers)),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, s := range signers {
		addr, err := s.GetAddress()
		if err != nil {
			return nil, fmt.Errorf("failed to get signer address: %w", err)
		}
		if _, dup := p.signers[addr]; dup {
			continue
		}
		p.signers[addr] = s
		p.available = append(p.available, addr)
	}
	return p, nil
}

// RequestAccounts returns the authorized accounts, prompting the first time.
func (p *LocalProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	if len(p.authorized) > 0 {
		out := slices.Clone(p.authorized)
		p.mu.Unlock()
		return out, nil
	}
	available := slices.Clone(p.available)
	p.mu.Unlock()

	ok, err := p.approver(ctx, Request{Kind: RequestConnect, Accounts: available})
	if err != nil {
		return nil, fmt.Errorf("failed to prompt for accounts: %w", err)
	}
	if !ok {
		return nil, &RPCError{Code: CodeUserRejected, Message: "user rejected the request"}
	}

	p.mu.Lock()
	p.authorized = available
	out := slices.Clone(p.authorized)
	p.mu.Unlock()
	p.logger.Sugar().Debugw("accounts authorized", zap.Int("count", len(out)))
	return out, nil
}

// ChainID returns the current network.
func (p *LocalProvider) ChainID(context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID, nil
}

func (p *LocalProvider) OnAccountsChanged(fn func(accounts []common.Address)) error {
	return p.subscribe(topicAccountsChanged, fn)
}

func (p *LocalProvider) OnChainChanged(fn func(chainID uint64)) error {
	return p.subscribe(topicChainChanged, fn)
}

func (p *LocalProvider) OnDisconnect(fn func(err error)) error {
	return p.subscribe(topicDisconnect, fn)
}

func (p *LocalProvider) subscribe(topic string, fn interface{}) error {
	if err := p.bus.Subscribe(topic, fn); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, listener{topic: topic, fn: fn})
	p.mu.Unlock()
	return nil
}

// RemoveListeners unsubscribes every listener. Called while an event is being
// delivered, the bus is still locked, so removal happens once delivery ends.
func (p *LocalProvider) RemoveListeners() error {
	p.mu.Lock()
	ls := p.listeners
	p.listeners = nil
	if p.publishing > 0 {
		p.detached = append(p.detached, ls...)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.unsubscribe(ls)
}

func (p *LocalProvider) unsubscribe(ls []listener) error {
	for _, l := range ls {
		if err := p.bus.Unsubscribe(l.topic, l.fn); err != nil {
			return fmt.Errorf("failed to unsubscribe from %s: %w", l.topic, err)
		}
	}
	return nil
}

// ListenerCount returns the number of registered listeners.
func (p *LocalProvider) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *LocalProvider) emit(topic string, args ...interface{}) {
	p.mu.Lock()
	p.publishing++
	p.mu.Unlock()

	p.bus.Publish(topic, args...)

	p.mu.Lock()
	p.publishing--
	var detached []listener
	if p.publishing == 0 {
		detached, p.detached = p.detached, nil
	}
	p.mu.Unlock()
	if err := p.unsubscribe(detached); err != nil {
		p.logger.Sugar().Warnw("failed to drop detached listeners", zap.Error(err))
	}
}

// Backend returns the connection for the current network.
func (p *LocalProvider) Backend() (chainManager.EthClientInterface, error) {
	p.mu.Lock()
	chainID := p.chainID
	p.mu.Unlock()
	chain, err := p.chains.GetChainForId(chainID)
	if err != nil {
		return nil, &RPCError{Code: CodeDisconnected, Message: err.Error()}
	}
	return chain.RPCClient, nil
}

// TransactOpts returns no-send options whose signer prompts the approver per transaction.
func (p *LocalProvider) TransactOpts(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	p.mu.Lock()
	signer, known := p.signers[account]
	authorized := slices.Contains(p.authorized, account)
	current := p.chainID
	p.mu.Unlock()

	if !known || !authorized {
		return nil, &RPCError{Code: CodeUnauthorized, Message: fmt.Sprintf("account %s is not authorized", account.Hex())}
	}
	if chainID == nil || chainID.Uint64() != current {
		return nil, &RPCError{Code: CodeUnrecognizedChain, Message: fmt.Sprintf("wallet is on chain %d", current)}
	}

	opts, err := signer.GetNoSendTransactOpts(ctx, chainID)
	if err != nil {
		return nil, err
	}
	sign := opts.Signer
	opts.Signer = func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		ok, err := p.approver(ctx, Request{Kind: RequestSignTransaction, Accounts: []common.Address{addr}, Tx: tx})
		if err != nil {
			return nil, fmt.Errorf("failed to prompt for signature: %w", err)
		}
		if !ok {
			return nil, &RPCError{Code: CodeUserRejected, Message: "user denied transaction signature"}
		}
		return sign(addr, tx)
	}
	return opts, nil
}

// SwitchAccount selects account, announcing the new account order.
func (p *LocalProvider) SwitchAccount(account common.Address) error {
	p.mu.Lock()
	if _, ok := p.signers[account]; !ok {
		p.mu.Unlock()
		return &RPCError{Code: CodeUnauthorized, Message: fmt.Sprintf("unknown account %s", account.Hex())}
	}
	rest := slices.DeleteFunc(slices.Clone(p.authorized), func(a common.Address) bool { return a == account })
	p.authorized = append([]common.Address{account}, rest...)
	out := slices.Clone(p.authorized)
	p.mu.Unlock()

	p.emit(topicAccountsChanged, out)
	return nil
}

// SetAccounts replaces the authorized accounts. Every account must be held by the wallet.
func (p *LocalProvider) SetAccounts(accounts []common.Address) error {
	p.mu.Lock()
	for _, a := range accounts {
		if _, ok := p.signers[a]; !ok {
			p.mu.Unlock()
			return &RPCError{Code: CodeUnauthorized, Message: fmt.Sprintf("unknown account %s", a.Hex())}
		}
	}
	p.authorized = slices.Clone(accounts)
	out := slices.Clone(accounts)
	p.mu.Unlock()

	if out == nil {
		out = []common.Address{}
	}
	p.emit(topicAccountsChanged, out)
	return nil
}

// Revoke withdraws every account authorization.
func (p *LocalProvider) Revoke() {
	p.mu.Lock()
	p.authorized = nil
	p.mu.Unlock()
	p.emit(topicAccountsChanged, []common.Address{})
}

// SwitchChain moves the wallet to chainID. The chain must be known to the chain manager.
func (p *LocalProvider) SwitchChain(chainID uint64) error {
	if _, err := p.chains.GetChainForId(chainID); err != nil {
		return &RPCError{Code: CodeUnrecognizedChain, Message: err.Error()}
	}
	p.mu.Lock()
	changed := p.chainID != chainID
	p.chainID = chainID
	p.mu.Unlock()
	if changed {
		p.emit(topicChainChanged, chainID)
	}
	return nil
}

// Disconnect announces the wallet losing its connection.
func (p *LocalProvider) Disconnect(reason string) {
	p.emit(topicDisconnect, &RPCError{Code: CodeDisconnected, Message: reason})
}
