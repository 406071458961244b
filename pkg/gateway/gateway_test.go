package gateway

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/chainManager"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/contracts"
	"github.com/greenstake/greenstake-go/pkg/readCache"
	"github.com/greenstake/greenstake-go/pkg/session"
	"github.com/greenstake/greenstake-go/pkg/walletProvider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sepoliaID = contracts.SupportedChainID

var (
	accountA = common.HexToAddress("0xAAA0000000000000000000000000000000000AAA")
	accountB = common.HexToAddress("0xBBB0000000000000000000000000000000000BBB")
	accountC = common.HexToAddress("0xCCC0000000000000000000000000000000000CCC")
)

// fakeProvider is a scripted wallet.
type fakeProvider struct {
	accounts   []common.Address
	chainID    uint64
	requestErr error
	backend    chainManager.EthClientInterface
	// duringRequest runs while the account prompt is open.
	duringRequest func()

	onAccounts   []func([]common.Address)
	onChain      []func(uint64)
	onDisconnect []func(error)
	removed      int
}

func (f *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	if f.duringRequest != nil {
		f.duringRequest()
	}
	return f.accounts, f.requestErr
}

func (f *fakeProvider) ChainID(context.Context) (uint64, error) {
	return f.chainID, nil
}

func (f *fakeProvider) OnAccountsChanged(fn func([]common.Address)) error {
	f.onAccounts = append(f.onAccounts, fn)
	return nil
}

func (f *fakeProvider) OnChainChanged(fn func(uint64)) error {
	f.onChain = append(f.onChain, fn)
	return nil
}

func (f *fakeProvider) OnDisconnect(fn func(error)) error {
	f.onDisconnect = append(f.onDisconnect, fn)
	return nil
}

func (f *fakeProvider) RemoveListeners() error {
	f.removed++
	f.onAccounts, f.onChain, f.onDisconnect = nil, nil, nil
	return nil
}

func (f *fakeProvider) Backend() (chainManager.EthClientInterface, error) {
	return f.backend, nil
}

func (f *fakeProvider) TransactOpts(_ context.Context, account common.Address, _ *big.Int) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: account, NoSend: true}, nil
}

func (f *fakeProvider) emitAccounts(accounts ...common.Address) {
	for _, fn := range f.onAccounts {
		fn(accounts)
	}
}

func (f *fakeProvider) emitChain(chainID uint64) {
	for _, fn := range f.onChain {
		fn(chainID)
	}
}

func (f *fakeProvider) listenerCount() int {
	return len(f.onAccounts) + len(f.onChain) + len(f.onDisconnect)
}

func setupTestGateway(t *testing.T, provider walletProvider.Provider) (*Gateway, *readCache.Cache) {
	cache := readCache.NewCache()
	g := NewGateway(&GatewayConfig{SupportedChainID: sepoliaID}, provider, session.New(), cache, zap.NewNop())
	return g, cache
}

func newFakeProvider(t *testing.T) *fakeProvider {
	return &fakeProvider{
		accounts: []common.Address{accountA},
		chainID:  sepoliaID,
		backend:  chainManager.NewMockEthClientInterface(t),
	}
}

func TestGateway_Connect(t *testing.T) {
	g, _ := setupTestGateway(t, newFakeProvider(t))

	snap, err := g.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Connected, snap.State)
	assert.Equal(t, accountA, *snap.Account)
	assert.Equal(t, sepoliaID, *snap.NetworkID)
	assert.Equal(t, snap, g.CurrentSession())
}

func TestGateway_ConnectWithoutWallet(t *testing.T) {
	g, _ := setupTestGateway(t, nil)

	snap, err := g.Connect(context.Background())
	assert.ErrorIs(t, err, clientErrors.ErrWalletUnavailable)
	assert.Equal(t, session.Error, snap.State)
	assert.ErrorIs(t, snap.Err, clientErrors.ErrWalletUnavailable)
}

func TestGateway_ConnectRejected(t *testing.T) {
	p := newFakeProvider(t)
	p.requestErr = &walletProvider.RPCError{Code: walletProvider.CodeUserRejected, Message: "denied"}
	g, _ := setupTestGateway(t, p)

	snap, err := g.Connect(context.Background())
	assert.ErrorIs(t, err, clientErrors.ErrUserRejected)
	assert.False(t, errors.Is(err, clientErrors.ErrWalletUnavailable))
	assert.Equal(t, session.Error, snap.State)
	assert.Nil(t, snap.Account)
	assert.Zero(t, p.listenerCount())
}

func TestGateway_EventsDuringConnectPrompt(t *testing.T) {
	p := newFakeProvider(t)
	g, cache := setupTestGateway(t, p)
	require.True(t, cache.Put(cache.Generation(), readCache.NewKey(contracts.DAO, "minimumStake"), []interface{}{big.NewInt(1)}))

	p.duringRequest = func() {
		assert.Equal(t, 3, p.listenerCount())
		p.emitAccounts(accountB)
		p.emitChain(5)
		p.emitChain(sepoliaID)
		assert.Equal(t, session.Connecting, g.CurrentSession().State)
	}

	snap, err := g.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Connected, snap.State)
	assert.Equal(t, accountB, *snap.Account)
	assert.Equal(t, sepoliaID, *snap.NetworkID)
	assert.Zero(t, cache.Len())

	p.duringRequest = nil
	p.emitAccounts(accountC)
	assert.Equal(t, accountC, *g.CurrentSession().Account)
}

func TestGateway_AccountsWithdrawnDuringConnectPrompt(t *testing.T) {
	p := newFakeProvider(t)
	g, _ := setupTestGateway(t, p)
	p.duringRequest = func() { p.emitAccounts() }

	snap, err := g.Connect(context.Background())
	assert.ErrorIs(t, err, clientErrors.ErrUserRejected)
	assert.Equal(t, session.Error, snap.State)
	assert.Nil(t, snap.Account)
	assert.Zero(t, p.listenerCount())
}

func TestGateway_ChainChangeDuringConnectPrompt(t *testing.T) {
	p := newFakeProvider(t)
	g, _ := setupTestGateway(t, p)
	p.duringRequest = func() { p.emitChain(1) }

	snap, err := g.Connect(context.Background())
	assert.ErrorIs(t, err, clientErrors.ErrUnsupportedNetwork)
	assert.Equal(t, session.Error, snap.State)
	assert.Equal(t, 3, p.listenerCount())
}

func TestGateway_ConnectUnsupportedNetwork(t *testing.T) {
	p := newFakeProvider(t)
	p.chainID = 1
	g, _ := setupTestGateway(t, p)

	snap, err := g.Connect(context.Background())
	assert.ErrorIs(t, err, clientErrors.ErrUnsupportedNetwork)
	assert.Equal(t, session.Error, snap.State)
	assert.Nil(t, snap.Account)
	assert.Nil(t, snap.NetworkID)

	_, err = g.ReadHandle()
	assert.ErrorIs(t, err, clientErrors.ErrUnsupportedNetwork)
	assert.ErrorIs(t, err, clientErrors.ErrNotConnected)

	p.emitChain(sepoliaID)
	snap = g.CurrentSession()
	require.Equal(t, session.Connected, snap.State)
	assert.Equal(t, accountA, *snap.Account)
}

func TestGateway_AccountChangeInvalidatesAccountReads(t *testing.T) {
	p := newFakeProvider(t)
	g, cache := setupTestGateway(t, p)
	_, err := g.Connect(context.Background())
	require.NoError(t, err)

	membership := readCache.NewKey(contracts.DAO, "members", accountA)
	stake := readCache.NewKey(contracts.DAO, "minimumStake")
	require.True(t, cache.Put(cache.Generation(), membership, []interface{}{true}))
	require.True(t, cache.Put(cache.Generation(), stake, []interface{}{big.NewInt(1)}))
	before := g.CurrentSession()

	p.emitAccounts(accountB, accountA)

	snap := g.CurrentSession()
	assert.Equal(t, session.Connected, snap.State)
	assert.Equal(t, accountB, *snap.Account)
	assert.Greater(t, snap.Epoch, before.Epoch)

	_, ok := cache.Get(membership)
	assert.False(t, ok)
	_, ok = cache.Get(stake)
	assert.True(t, ok)
}

func TestGateway_AccountSequence(t *testing.T) {
	p := newFakeProvider(t)
	g, _ := setupTestGateway(t, p)
	_, err := g.Connect(context.Background())
	require.NoError(t, err)

	p.emitAccounts(accountB)
	assert.Equal(t, accountB, *g.CurrentSession().Account)

	p.emitAccounts()
	snap := g.CurrentSession()
	assert.Equal(t, session.Disconnected, snap.State)
	assert.Nil(t, snap.Account)

	p.emitAccounts(accountC)
	snap = g.CurrentSession()
	require.Equal(t, session.Connected, snap.State)
	assert.Equal(t, accountC, *snap.Account)
}

func TestGateway_AccountChangeWhileOnUnsupportedNetwork(t *testing.T) {
	p := newFakeProvider(t)
	g, _ := setupTestGateway(t, p)
	_, err := g.Connect(context.Background())
	require.NoError(t, err)

	p.emitChain(5)
	assert.Equal(t, session.Error, g.CurrentSession().State)

	p.emitAccounts(accountB)
	snap := g.CurrentSession()
	assert.Equal(t, session.Error, snap.State)
	assert.Nil(t, snap.Account)

	p.emitChain(sepoliaID)
	snap = g.CurrentSession()
	require.Equal(t, session.Connected, snap.State)
	assert.Equal(t, accountB, *snap.Account)
}

func TestGateway_NetworkChangeInvalidatesAllReads(t *testing.T) {
	p := newFakeProvider(t)
	g, cache := setupTestGateway(t, p)
	_, err := g.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, cache.Put(cache.Generation(), readCache.NewKey(contracts.ProjectListing, "projectCounter"), []interface{}{big.NewInt(2)}))

	p.emitChain(1)
	assert.Zero(t, cache.Len())
}

func TestGateway_NoListenerLeak(t *testing.T) {
	p := newFakeProvider(t)
	g, _ := setupTestGateway(t, p)

	for i := 0; i < 5; i++ {
		_, err := g.Connect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, p.listenerCount())
	}
	require.NoError(t, g.Disconnect())
	assert.Zero(t, p.listenerCount())

	for i := 0; i < 3; i++ {
		_, err := g.Connect(context.Background())
		require.NoError(t, err)
		require.NoError(t, g.Disconnect())
	}
	assert.Zero(t, p.listenerCount())

	p.emitAccounts(accountB)
	assert.Equal(t, session.Disconnected, g.CurrentSession().State)
}

func TestGateway_Handles(t *testing.T) {
	p := newFakeProvider(t)
	g, _ := setupTestGateway(t, p)

	_, err := g.ReadHandle()
	assert.ErrorIs(t, err, clientErrors.ErrNotConnected)
	_, err = g.SignHandle()
	assert.ErrorIs(t, err, clientErrors.ErrNotConnected)

	_, err = g.Connect(context.Background())
	require.NoError(t, err)

	h, err := g.SignHandle()
	require.NoError(t, err)
	assert.Equal(t, accountA, h.Account)
	assert.Equal(t, sepoliaID, h.ChainID)
	require.NoError(t, g.Validate(h))

	opts, err := h.TransactOpts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accountA, opts.From)

	p.emitAccounts(accountB)
	assert.ErrorIs(t, g.Validate(h), clientErrors.ErrStaleHandle)
	_, err = h.TransactOpts(context.Background())
	assert.ErrorIs(t, err, clientErrors.ErrStaleHandle)
}

func TestGateway_HandlesAfterFailedConnect(t *testing.T) {
	p := newFakeProvider(t)
	p.requestErr = &walletProvider.RPCError{Code: walletProvider.CodeUserRejected, Message: "denied"}
	rejected, _ := setupTestGateway(t, p)
	_, err := rejected.Connect(context.Background())
	require.ErrorIs(t, err, clientErrors.ErrUserRejected)

	walletless, _ := setupTestGateway(t, nil)
	_, err = walletless.Connect(context.Background())
	require.ErrorIs(t, err, clientErrors.ErrWalletUnavailable)

	for name, g := range map[string]*Gateway{"rejected": rejected, "walletless": walletless} {
		require.Equal(t, session.Error, g.CurrentSession().State, name)

		_, err = g.SignHandle()
		assert.ErrorIs(t, err, clientErrors.ErrNotConnected, name)
		assert.Equal(t, "Connect your wallet first.", clientErrors.Message(err), name)

		_, err = g.ReadHandle()
		assert.ErrorIs(t, err, clientErrors.ErrNotConnected, name)
	}

	_, err = rejected.SignHandle()
	assert.ErrorIs(t, err, clientErrors.ErrUserRejected)
	_, err = walletless.SignHandle()
	assert.ErrorIs(t, err, clientErrors.ErrWalletUnavailable)
}

func TestGateway_WithLocalProvider(t *testing.T) {
	cm := chainManager.NewChainManager()
	require.NoError(t, cm.AddChainClient(&chainManager.ChainConfig{ChainID: sepoliaID}, chainManager.NewMockEthClientInterface(t)))
	p, err := walletProvider.NewLocalProvider(cm, sepoliaID, nil)
	require.NoError(t, err)
	g, _ := setupTestGateway(t, p)

	_, err = g.Connect(context.Background())
	assert.ErrorIs(t, err, clientErrors.ErrUserRejected)

	for i := 0; i < 3; i++ {
		_, _ = g.Connect(context.Background())
	}
	assert.Zero(t, p.ListenerCount())
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))
	assert.ErrorIs(t, Classify(&walletProvider.RPCError{Code: walletProvider.CodeDisconnected}), clientErrors.ErrWalletUnavailable)
	assert.ErrorIs(t, Classify(&walletProvider.RPCError{Code: walletProvider.CodeUserRejected}), clientErrors.ErrUserRejected)

	other := errors.New("other")
	assert.Same(t, other, Classify(other))
}
