package facade

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/chainManager"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/txTracker"
	"go.uber.org/zap"
)

// FallbackGasTipCap is used when the node cannot suggest a priority fee.
var FallbackGasTipCap = big.NewInt(15000000000)

type fees struct {
	gasTipCap *big.Int
	gasFeeCap *big.Int
	gasLimit  uint64
}

func (f *Facade) estimateFees(
	ctx context.Context,
	backend chainManager.EthClientInterface,
	from common.Address,
	to common.Address,
	value *big.Int,
	input []byte,
) (*fees, error) {
	gasTipCap, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		// Not every node implements eth_maxPriorityFeePerGas.
		f.logger.Sugar().Debugw("Cannot get gasTipCap, using fallback",
			zap.String("error", err.Error()),
		)
		gasTipCap = new(big.Int).Set(FallbackGasTipCap)
	}

	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	// basefee * 3/2
	overestimatedBasefee := new(big.Int).Div(new(big.Int).Mul(baseFee, big.NewInt(3)), big.NewInt(2))
	gasFeeCap := new(big.Int).Add(overestimatedBasefee, gasTipCap)

	gasLimit, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        &to,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Value:     value,
		Data:      input,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", clientErrors.ErrSubmissionRejected, txTracker.ReasonFromError(err))
	}

	return &fees{
		gasTipCap: gasTipCap,
		gasFeeCap: gasFeeCap,
		gasLimit:  addGasBuffer(gasLimit),
	}, nil
}

// addGasBuffer adds 20% to the estimate.
func addGasBuffer(gasLimit uint64) uint64 {
	return 6 * gasLimit / 5
}
