// Package facade is the single entry point for contract calls. Reads go through
// the connected wallet, or the public endpoint when no wallet is connected, and
// are cached until invalidated. Writes are signed by the wallet and handed to the
// transaction tracker; callers observe their outcome there.
package facade

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/chainManager"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/contracts"
	"github.com/greenstake/greenstake-go/pkg/gateway"
	"github.com/greenstake/greenstake-go/pkg/readCache"
	"github.com/greenstake/greenstake-go/pkg/session"
	"github.com/greenstake/greenstake-go/pkg/txTracker"
	"go.uber.org/zap"
)

// WalletGateway is what the facade needs from the gateway.
type WalletGateway interface {
	CurrentSession() session.WalletSession
	ReadHandle() (*gateway.ReadHandle, error)
	SignHandle() (*gateway.SignHandle, error)
	Validate(h gateway.Handle) error
}

// TransactionTracker accepts signed writes.
type TransactionTracker interface {
	Submit(ctx context.Context, backend txTracker.Backend, sub txTracker.Submission) (txTracker.Record, error)
}

type FacadeConfig struct {
	SupportedChainID uint64
}

// CallOpts carries the native value sent with a write, in wei.
type CallOpts struct {
	Value *big.Int
}

// Result is the outcome of Call: decoded values for a read, the submitted
// record for a write.
type Result struct {
	Values []interface{}
	Record *txTracker.Record
}

type Facade struct {
	config   *FacadeConfig
	registry *contracts.Registry
	gateway  WalletGateway
	chains   chainManager.IChainManager
	cache    *readCache.Cache
	tracker  TransactionTracker
	logger   *zap.Logger
}

func NewFacade(
	cfg *FacadeConfig,
	registry *contracts.Registry,
	gw WalletGateway,
	cm chainManager.IChainManager,
	cache *readCache.Cache,
	tracker TransactionTracker,
	l *zap.Logger,
) *Facade {
	return &Facade{
		config:   cfg,
		registry: registry,
		gateway:  gw,
		chains:   cm,
		cache:    cache,
		tracker:  tracker,
		logger:   l,
	}
}

// Call invokes method on the named contract, dispatching on the method's mutability.
func (f *Facade) Call(ctx context.Context, name contracts.Name, method string, args []interface{}, opts *CallOpts) (*Result, error) {
	desc, err := f.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if _, err := desc.Method(method); err != nil {
		return nil, err
	}
	if desc.IsRead(method) {
		values, err := f.Read(ctx, name, method, args...)
		if err != nil {
			return nil, err
		}
		return &Result{Values: values}, nil
	}
	record, err := f.Write(ctx, name, method, opts, args...)
	if err != nil {
		return nil, err
	}
	return &Result{Record: &record}, nil
}

// Read calls a view method. Cached values are returned until something
// invalidates them.
func (f *Facade) Read(ctx context.Context, name contracts.Name, method string, args ...interface{}) ([]interface{}, error) {
	desc, err := f.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if _, err := desc.Method(method); err != nil {
		return nil, err
	}
	if !desc.IsRead(method) {
		return nil, fmt.Errorf("%s.%s changes state and cannot be read", name, method)
	}

	key := readCache.NewKey(name, method, args...)
	if values, ok := f.cache.Get(key); ok {
		return values, nil
	}

	// One retry covers a session change while the read was in flight.
	for attempt := 0; attempt < 2; attempt++ {
		backend, handle, err := f.readBackend()
		if err != nil {
			return nil, err
		}
		callOpts := &bind.CallOpts{Context: ctx}
		if handle != nil {
			callOpts.From = handle.Account
		}

		generation := f.cache.Generation()
		var out []interface{}
		bound := bind.NewBoundContract(desc.Address, desc.ABI, backend, backend, backend)
		if err := bound.Call(callOpts, &out, method, args...); err != nil {
			return nil, fmt.Errorf("failed to call %s.%s: %w", name, method, err)
		}

		if handle != nil {
			if err := f.gateway.Validate(handle); err != nil {
				f.logger.Sugar().Debugw("Session changed during read, retrying",
					zap.String("contract", name.String()),
					zap.String("method", method),
				)
				continue
			}
		}
		f.cache.Put(generation, key, out)
		return out, nil
	}
	return nil, fmt.Errorf("failed to call %s.%s: %w", name, method, clientErrors.ErrStaleHandle)
}

// readBackend prefers the wallet's connection and falls back to the public
// endpoint, except while the wallet sits on an unsupported network.
func (f *Facade) readBackend() (chainManager.EthClientInterface, *gateway.ReadHandle, error) {
	handle, err := f.gateway.ReadHandle()
	if err == nil {
		return handle.Backend, handle, nil
	}
	if errors.Is(err, clientErrors.ErrUnsupportedNetwork) {
		return nil, nil, err
	}
	chain, err := f.chains.GetChainForId(f.config.SupportedChainID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get public endpoint: %w", err)
	}
	return chain.RPCClient, nil, nil
}

// Write signs method with the connected wallet and submits it to the tracker.
// The returned record is Submitted, or Failed when the broadcast was refused.
func (f *Facade) Write(ctx context.Context, name contracts.Name, method string, opts *CallOpts, args ...interface{}) (txTracker.Record, error) {
	desc, err := f.registry.Get(name)
	if err != nil {
		return txTracker.Record{}, err
	}
	abiMethod, err := desc.Method(method)
	if err != nil {
		return txTracker.Record{}, err
	}
	if desc.IsRead(method) {
		return txTracker.Record{}, fmt.Errorf("%s.%s is a view method; use Read", name, method)
	}

	value := new(big.Int)
	if opts != nil && opts.Value != nil {
		value.Set(opts.Value)
	}
	if value.Sign() > 0 && !abiMethod.IsPayable() {
		return txTracker.Record{}, fmt.Errorf("%s.%s does not accept value", name, method)
	}

	handle, err := f.gateway.SignHandle()
	if err != nil {
		return txTracker.Record{}, err
	}

	input, err := desc.ABI.Pack(method, args...)
	if err != nil {
		return txTracker.Record{}, fmt.Errorf("failed to pack %s.%s: %w", name, method, err)
	}

	fees, err := f.estimateFees(ctx, handle.Backend, handle.Account, desc.Address, value, input)
	if err != nil {
		return txTracker.Record{}, err
	}

	txOpts, err := handle.TransactOpts(ctx)
	if err != nil {
		return txTracker.Record{}, err
	}
	txOpts.Context = ctx
	txOpts.NoSend = true
	txOpts.Value = value
	txOpts.GasTipCap = fees.gasTipCap
	txOpts.GasFeeCap = fees.gasFeeCap
	txOpts.GasLimit = fees.gasLimit

	bound := bind.NewBoundContract(desc.Address, desc.ABI, handle.Backend, handle.Backend, handle.Backend)
	tx, err := bound.Transact(txOpts, method, args...)
	if err != nil {
		return txTracker.Record{}, fmt.Errorf("failed to sign %s.%s: %w", name, method, gateway.Classify(err))
	}

	// The wallet prompt may have outlived the session it was opened for.
	if err := f.gateway.Validate(handle); err != nil {
		return txTracker.Record{}, err
	}

	f.logger.Sugar().Infow("Submitting transaction",
		zap.String("contract", name.String()),
		zap.String("method", method),
		zap.String("from", handle.Account.Hex()),
		zap.String("value", value.String()),
		zap.Uint64("gasLimit", fees.gasLimit),
	)
	return f.tracker.Submit(ctx, handle.Backend, txTracker.Submission{
		Contract: name,
		Method:   method,
		From:     handle.Account,
		Tx:       tx,
	})
}

// Account returns the connected account, if any.
func (f *Facade) Account() (common.Address, bool) {
	snap := f.gateway.CurrentSession()
	if !snap.IsConnected() {
		return common.Address{}, false
	}
	return *snap.Account, true
}
