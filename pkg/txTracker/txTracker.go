// Package txTracker follows submitted writes from broadcast to settlement and
// notifies subscribers of the outcome. Every record is watched on its own and
// settles independently of the others.
package txTracker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/contracts"
	"go.uber.org/zap"
)

const DefaultPollInterval = 2 * time.Second

// Backend is the part of an RPC client the tracker needs.
type Backend interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ContractInvalidator is told which contracts' reads a confirmed write made stale.
type ContractInvalidator interface {
	InvalidateContracts(names ...contracts.Name)
}

type TrackerConfig struct {
	PollInterval time.Duration
}

// Submission is a signed transaction ready to broadcast.
type Submission struct {
	Contract contracts.Name
	Method   string
	From     common.Address
	Tx       *types.Transaction
}

// Subscription receives exactly one terminal Record on C, after which C is closed.
type Subscription struct {
	ID     uuid.UUID
	Record common.Hash
	C      <-chan Record
}

type entry struct {
	record      Record
	tx          *types.Transaction
	pending     chan struct{}
	subscribers map[uuid.UUID]chan Record
}

type Tracker struct {
	config      *TrackerConfig
	registry    *contracts.Registry
	invalidator ContractInvalidator
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	records map[common.Hash]*entry
}

// NewTracker creates a tracker. invalidator may be nil.
func NewTracker(cfg *TrackerConfig, registry *contracts.Registry, invalidator ContractInvalidator, l *zap.Logger) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		config:      cfg,
		registry:    registry,
		invalidator: invalidator,
		logger:      l,
		ctx:         ctx,
		cancel:      cancel,
		records:     make(map[common.Hash]*entry),
	}
}

// Submit records sub as Submitted and broadcasts it through backend. A
// broadcast failure settles the record as Failed and is also returned.
func (t *Tracker) Submit(ctx context.Context, backend Backend, sub Submission) (Record, error) {
	hash := sub.Tx.Hash()
	e := &entry{
		record: Record{
			ID:          hash,
			Kind:        WriteKind,
			State:       Submitted,
			Contract:    sub.Contract,
			Method:      sub.Method,
			From:        sub.From,
			SubmittedAt: time.Now(),
		},
		tx:          sub.Tx,
		pending:     make(chan struct{}),
		subscribers: make(map[uuid.UUID]chan Record),
	}

	t.mu.Lock()
	if _, exists := t.records[hash]; exists {
		t.mu.Unlock()
		return Record{}, fmt.Errorf("transaction %s is already tracked", hash.Hex())
	}
	t.records[hash] = e
	submitted := e.record
	t.mu.Unlock()

	if err := backend.SendTransaction(ctx, sub.Tx); err != nil {
		rejected := fmt.Errorf("%w: %s", clientErrors.ErrSubmissionRejected, err.Error())
		record := t.settle(hash, Failed, nil, rejected, "")
		t.logger.Sugar().Errorw("Transaction submission rejected",
			zap.String("txHash", hash.Hex()),
			zap.String("method", sub.Method),
			zap.Error(err),
		)
		return record, rejected
	}

	t.logger.Sugar().Infow("Transaction submitted",
		zap.String("txHash", hash.Hex()),
		zap.String("contract", sub.Contract.String()),
		zap.String("method", sub.Method),
	)

	t.wg.Add(1)
	go t.watch(backend, e)
	return submitted, nil
}

func (t *Tracker) watch(backend Backend, e *entry) {
	defer t.wg.Done()

	hash := e.record.ID
	ticker := time.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	seen := false
	for {
		_, _, lookupErr := backend.TransactionByHash(t.ctx, hash)
		switch {
		case lookupErr == nil:
			seen = true
			t.markPending(hash)
		case errors.Is(lookupErr, ethereum.NotFound):
		default:
			t.logger.Sugar().Debugw("Failed to look up transaction", zap.String("txHash", hash.Hex()), zap.Error(lookupErr))
		}

		receipt, err := backend.TransactionReceipt(t.ctx, hash)
		if err == nil && receipt != nil {
			t.markPending(hash)
			t.conclude(backend, e, receipt)
			return
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			t.logger.Sugar().Debugw("Failed to fetch receipt", zap.String("txHash", hash.Hex()), zap.Error(err))
		}

		// A transaction the node knew about and then forgot is only gone for good
		// once its nonce has been used by another transaction.
		if seen && errors.Is(lookupErr, ethereum.NotFound) && t.replaced(backend, e) {
			t.settle(hash, Failed, nil, fmt.Errorf("%w: dropped or replaced", clientErrors.ErrTransactionFailed), "")
			t.logger.Sugar().Warnw("Transaction dropped",
				zap.String("txHash", hash.Hex()),
				zap.Uint64("nonce", e.tx.Nonce()),
			)
			return
		}

		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *Tracker) replaced(backend Backend, e *entry) bool {
	nonce, err := backend.NonceAt(t.ctx, e.record.From, nil)
	if err != nil {
		t.logger.Sugar().Debugw("Failed to fetch account nonce", zap.String("account", e.record.From.Hex()), zap.Error(err))
		return false
	}
	if nonce <= e.tx.Nonce() {
		return false
	}
	// Mined between the two lookups; the next poll concludes it.
	if receipt, err := backend.TransactionReceipt(t.ctx, e.record.ID); err == nil && receipt != nil {
		return false
	}
	return true
}

func (t *Tracker) conclude(backend Backend, e *entry, receipt *types.Receipt) {
	hash := e.record.ID
	if receipt.Status == types.ReceiptStatusSuccessful {
		// Stale reads are dropped before subscribers hear about the confirmation.
		if t.invalidator != nil {
			if desc, err := t.registry.Get(e.record.Contract); err == nil {
				t.invalidator.InvalidateContracts(desc.Affects...)
			}
		}
		t.settle(hash, Confirmed, receipt, nil, "")
		t.logger.Sugar().Infow("Transaction confirmed",
			zap.String("txHash", hash.Hex()),
			zap.Uint64("blockNumber", receipt.BlockNumber.Uint64()),
		)
		return
	}

	reason := revertReason(t.ctx, backend, e.record.From, e.tx, receipt.BlockNumber)
	t.settle(hash, Failed, receipt, &clientErrors.RevertError{Reason: reason}, reason)
	t.logger.Sugar().Warnw("Transaction reverted",
		zap.String("txHash", hash.Hex()),
		zap.String("reason", reason),
	)
}

func (t *Tracker) markPending(hash common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.records[hash]
	if e.record.State != Submitted {
		return
	}
	e.record.State = Pending
	close(e.pending)
}

// settle moves a record to a terminal state and notifies its subscribers. Only
// the first call for a record has any effect.
func (t *Tracker) settle(hash common.Hash, state State, receipt *types.Receipt, err error, reason string) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.records[hash]
	if e.record.State.Terminal() {
		return e.record
	}
	if e.record.State == Submitted {
		close(e.pending)
	}
	e.record.State = state
	e.record.Receipt = receipt
	e.record.Err = err
	e.record.RevertReason = reason
	e.record.SettledAt = time.Now()
	if receipt != nil && state == Confirmed {
		e.record.Events = t.decodeEvents(receipt)
	}

	for id, ch := range e.subscribers {
		ch <- e.record
		close(ch)
		delete(e.subscribers, id)
	}
	return e.record
}

// Subscribe returns a subscription that receives the terminal record of id.
// Subscribing to an already settled record delivers at once.
func (t *Tracker) Subscribe(id common.Hash) (*Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", clientErrors.ErrUnknownTransaction, id.Hex())
	}
	ch := make(chan Record, 1)
	sub := &Subscription{ID: uuid.New(), Record: id, C: ch}
	if e.record.State.Terminal() {
		ch <- e.record
		close(ch)
		return sub, nil
	}
	e.subscribers[sub.ID] = ch
	return sub, nil
}

// Unsubscribe drops sub before it is delivered. Its channel is closed.
func (t *Tracker) Unsubscribe(sub *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.records[sub.Record]
	if !ok {
		return
	}
	if ch, ok := e.subscribers[sub.ID]; ok {
		delete(e.subscribers, sub.ID)
		close(ch)
	}
}

// SubscribePending returns a channel closed once the record leaves Submitted.
func (t *Tracker) SubscribePending(id common.Hash) (<-chan struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", clientErrors.ErrUnknownTransaction, id.Hex())
	}
	return e.pending, nil
}

// Wait blocks until id settles or ctx is done. A Failed record is returned
// together with its error.
func (t *Tracker) Wait(ctx context.Context, id common.Hash) (Record, error) {
	sub, err := t.Subscribe(id)
	if err != nil {
		return Record{}, err
	}
	select {
	case record := <-sub.C:
		return record, record.Err
	case <-ctx.Done():
		t.Unsubscribe(sub)
		return Record{}, ctx.Err()
	}
}

// Record returns the current state of id.
func (t *Tracker) Record(id common.Hash) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", clientErrors.ErrUnknownTransaction, id.Hex())
	}
	return e.record, nil
}

// Records returns every tracked record.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, 0, len(t.records))
	for _, e := range t.records {
		out = append(out, e.record)
	}
	return out
}

// Close stops all watchers. Records that have not settled stay as they are.
func (t *Tracker) Close() {
	t.cancel()
	t.wg.Wait()
}
