package txTracker

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted:"

// revertReason replays tx at its inclusion block to recover why it reverted.
// An empty string means the node would not say.
func revertReason(ctx context.Context, backend Backend, from common.Address, tx *types.Transaction, block *big.Int) string {
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := backend.CallContract(ctx, msg, block)
	if err == nil {
		return ""
	}
	return ReasonFromError(err)
}

// ReasonFromError extracts a revert reason from a call error, preferring the
// ABI-encoded revert data when the node returns it.
func ReasonFromError(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(data); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	msg := err.Error()
	if idx := strings.Index(msg, revertPrefix); idx >= 0 {
		return strings.TrimSpace(msg[idx+len(revertPrefix):])
	}
	return msg
}
