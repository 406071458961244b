package txTracker

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/greenstake/greenstake-go/pkg/chainManager"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var donor = common.HexToAddress("0xAAA0000000000000000000000000000000000AAA")

type recordingInvalidator struct {
	mu    sync.Mutex
	names []contracts.Name
}

func (r *recordingInvalidator) InvalidateContracts(names ...contracts.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, names...)
}

func (r *recordingInvalidator) invalidated() []contracts.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]contracts.Name(nil), r.names...)
}

func setupTestTracker(t *testing.T) (*Tracker, *chainManager.MockEthClientInterface, *recordingInvalidator, *contracts.Registry) {
	registry := contracts.MustLoad()
	client := chainManager.NewMockEthClientInterface(t)
	inv := &recordingInvalidator{}
	tracker := NewTracker(&TrackerConfig{PollInterval: 5 * time.Millisecond}, registry, inv, zap.NewNop())
	t.Cleanup(tracker.Close)
	return tracker, client, inv, registry
}

func testSubmission(t *testing.T, registry *contracts.Registry, contract contracts.Name, nonce uint64) Submission {
	desc, err := registry.Get(contract)
	require.NoError(t, err)
	to := desc.Address
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(contracts.SupportedChainID),
		Nonce:     nonce,
		Gas:       100000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		To:        &to,
		Value:     big.NewInt(1000),
	})
	return Submission{Contract: contract, Method: "donateToProject", From: donor, Tx: tx}
}

func TestTracker_Confirmed(t *testing.T) {
	tracker, client, inv, registry := setupTestTracker(t)
	sub := testSubmission(t, registry, contracts.Donate, 0)
	desc, _ := registry.Get(contracts.Donate)

	donation := desc.ABI.Events["Donation"]
	data, err := donation.Inputs.NonIndexed().Pack(big.NewInt(1000))
	require.NoError(t, err)
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(42),
		TxHash:      sub.Tx.Hash(),
		Logs: []*types.Log{{
			Address: desc.Address,
			Topics: []common.Hash{
				donation.ID,
				common.BytesToHash(donor.Bytes()),
				common.BigToHash(big.NewInt(7)),
			},
			Data: data,
		}},
	}

	client.On("SendTransaction", mock.Anything, sub.Tx).Return(nil)
	client.On("TransactionByHash", mock.Anything, sub.Tx.Hash()).Return(sub.Tx, true, nil).Maybe()
	client.On("TransactionReceipt", mock.Anything, sub.Tx.Hash()).Return(nil, ethereum.NotFound).Once()
	client.On("TransactionReceipt", mock.Anything, sub.Tx.Hash()).Return(receipt, nil)

	record, err := tracker.Submit(context.Background(), client, sub)
	require.NoError(t, err)
	assert.Equal(t, Submitted, record.State)
	assert.Equal(t, WriteKind, record.Kind)

	pending, err := tracker.SubscribePending(record.ID)
	require.NoError(t, err)
	subscription, err := tracker.Subscribe(record.ID)
	require.NoError(t, err)

	select {
	case <-pending:
	case <-time.After(time.Second):
		t.Fatal("record never left submitted")
	}

	final := <-subscription.C
	assert.Equal(t, Confirmed, final.State)
	assert.NoError(t, final.Err)
	assert.Same(t, receipt, final.Receipt)
	require.Len(t, final.Events, 1)
	assert.Equal(t, "Donation", final.Events[0].Name)
	assert.Equal(t, donor, final.Events[0].Fields["donor"])
	assert.Equal(t, big.NewInt(7), final.Events[0].Fields["projectId"])
	assert.Equal(t, big.NewInt(1000), final.Events[0].Fields["amount"])

	_, open := <-subscription.C
	assert.False(t, open, "terminal record is delivered once")

	assert.ElementsMatch(t, desc.Affects, inv.invalidated())
}

func TestTracker_RevertDeliversReasonOnce(t *testing.T) {
	tracker, client, inv, registry := setupTestTracker(t)
	sub := testSubmission(t, registry, contracts.DAO, 1)
	sub.Method = "joinDAO"

	receipt := &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(43)}
	client.On("SendTransaction", mock.Anything, sub.Tx).Return(nil)
	client.On("TransactionByHash", mock.Anything, sub.Tx.Hash()).Return(sub.Tx, true, nil).Maybe()
	client.On("TransactionReceipt", mock.Anything, sub.Tx.Hash()).Return(receipt, nil)
	client.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.From == donor && *msg.To == *sub.Tx.To()
	}), big.NewInt(43)).Return(nil, errors.New("execution reverted: insufficient stake"))

	record, err := tracker.Submit(context.Background(), client, sub)
	require.NoError(t, err)

	first, err := tracker.Subscribe(record.ID)
	require.NoError(t, err)
	second, err := tracker.Subscribe(record.ID)
	require.NoError(t, err)

	for _, s := range []*Subscription{first, second} {
		var got []Record
		for r := range s.C {
			got = append(got, r)
		}
		require.Len(t, got, 1)
		assert.Equal(t, Failed, got[0].State)
		assert.Equal(t, "insufficient stake", got[0].RevertReason)
		assert.ErrorIs(t, got[0].Err, clientErrors.ErrTransactionFailed)
	}
	assert.Empty(t, inv.invalidated())
}

func TestTracker_SubmissionRejected(t *testing.T) {
	tracker, client, _, registry := setupTestTracker(t)
	sub := testSubmission(t, registry, contracts.Donate, 2)

	client.On("SendTransaction", mock.Anything, sub.Tx).Return(errors.New("insufficient funds for gas * price + value"))

	record, err := tracker.Submit(context.Background(), client, sub)
	assert.ErrorIs(t, err, clientErrors.ErrSubmissionRejected)
	assert.Equal(t, Failed, record.State)

	pending, err := tracker.SubscribePending(record.ID)
	require.NoError(t, err)
	_, open := <-pending
	assert.False(t, open)

	settled, err := tracker.Wait(context.Background(), record.ID)
	assert.ErrorIs(t, err, clientErrors.ErrSubmissionRejected)
	assert.Equal(t, Failed, settled.State)
}

func TestTracker_DuplicateSubmission(t *testing.T) {
	tracker, client, _, registry := setupTestTracker(t)
	sub := testSubmission(t, registry, contracts.Donate, 3)
	client.On("SendTransaction", mock.Anything, sub.Tx).Return(errors.New("rejected"))

	_, _ = tracker.Submit(context.Background(), client, sub)
	_, err := tracker.Submit(context.Background(), client, sub)
	assert.ErrorContains(t, err, "already tracked")
}

func TestTracker_WaitHonoursContext(t *testing.T) {
	tracker, client, _, registry := setupTestTracker(t)
	sub := testSubmission(t, registry, contracts.Donate, 4)

	client.On("SendTransaction", mock.Anything, sub.Tx).Return(nil)
	client.On("TransactionByHash", mock.Anything, sub.Tx.Hash()).Return(nil, false, ethereum.NotFound).Maybe()
	client.On("TransactionReceipt", mock.Anything, sub.Tx.Hash()).Return(nil, ethereum.NotFound).Maybe()

	record, err := tracker.Submit(context.Background(), client, sub)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = tracker.Wait(ctx, record.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	current, err := tracker.Record(record.ID)
	require.NoError(t, err)
	assert.Equal(t, Submitted, current.State)
}

func TestTracker_DroppedTransactionFails(t *testing.T) {
	tracker, client, inv, registry := setupTestTracker(t)
	sub := testSubmission(t, registry, contracts.Donate, 7)

	client.On("SendTransaction", mock.Anything, sub.Tx).Return(nil)
	client.On("TransactionByHash", mock.Anything, sub.Tx.Hash()).Return(sub.Tx, true, nil).Once()
	client.On("TransactionByHash", mock.Anything, sub.Tx.Hash()).Return(nil, false, ethereum.NotFound)
	client.On("TransactionReceipt", mock.Anything, sub.Tx.Hash()).Return(nil, ethereum.NotFound)
	client.On("NonceAt", mock.Anything, donor, mock.Anything).Return(uint64(8), nil)

	record, err := tracker.Submit(context.Background(), client, sub)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	settled, err := tracker.Wait(ctx, record.ID)
	assert.ErrorIs(t, err, clientErrors.ErrTransactionFailed)
	assert.Equal(t, Failed, settled.State)
	assert.ErrorContains(t, settled.Err, "dropped or replaced")
	assert.Nil(t, settled.Receipt)
	assert.Empty(t, inv.invalidated())
}

func TestTracker_ForgottenTransactionStaysPendingUntilNonceMoves(t *testing.T) {
	tracker, client, _, registry := setupTestTracker(t)
	sub := testSubmission(t, registry, contracts.Donate, 9)

	client.On("SendTransaction", mock.Anything, sub.Tx).Return(nil)
	client.On("TransactionByHash", mock.Anything, sub.Tx.Hash()).Return(sub.Tx, true, nil).Once()
	client.On("TransactionByHash", mock.Anything, sub.Tx.Hash()).Return(nil, false, ethereum.NotFound)
	client.On("TransactionReceipt", mock.Anything, sub.Tx.Hash()).Return(nil, ethereum.NotFound)
	client.On("NonceAt", mock.Anything, donor, mock.Anything).Return(uint64(9), nil)

	record, err := tracker.Submit(context.Background(), client, sub)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = tracker.Wait(ctx, record.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	current, err := tracker.Record(record.ID)
	require.NoError(t, err)
	assert.Equal(t, Pending, current.State)
}

func TestTracker_IndependentRecords(t *testing.T) {
	tracker, client, _, registry := setupTestTracker(t)
	slow := testSubmission(t, registry, contracts.Donate, 5)
	fast := testSubmission(t, registry, contracts.Donate, 6)

	client.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)
	client.On("TransactionByHash", mock.Anything, mock.Anything).Return(nil, false, ethereum.NotFound).Maybe()
	client.On("TransactionReceipt", mock.Anything, slow.Tx.Hash()).Return(nil, ethereum.NotFound).Maybe()
	client.On("TransactionReceipt", mock.Anything, fast.Tx.Hash()).Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil)

	slowRecord, err := tracker.Submit(context.Background(), client, slow)
	require.NoError(t, err)
	fastRecord, err := tracker.Submit(context.Background(), client, fast)
	require.NoError(t, err)

	settled, err := tracker.Wait(context.Background(), fastRecord.ID)
	require.NoError(t, err)
	assert.Equal(t, Confirmed, settled.State)

	current, err := tracker.Record(slowRecord.ID)
	require.NoError(t, err)
	assert.False(t, current.State.Terminal())
	assert.Len(t, tracker.Records(), 2)
}

func TestTracker_UnknownTransaction(t *testing.T) {
	tracker, _, _, _ := setupTestTracker(t)
	id := common.HexToHash("0x01")

	_, err := tracker.Subscribe(id)
	assert.ErrorIs(t, err, clientErrors.ErrUnknownTransaction)
	_, err = tracker.SubscribePending(id)
	assert.ErrorIs(t, err, clientErrors.ErrUnknownTransaction)
	_, err = tracker.Record(id)
	assert.ErrorIs(t, err, clientErrors.ErrUnknownTransaction)
}

func TestReasonFromError(t *testing.T) {
	assert.Equal(t, "insufficient stake", ReasonFromError(errors.New("execution reverted: insufficient stake")))
	assert.Equal(t, "out of gas", ReasonFromError(errors.New("out of gas")))
}
