package facade

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func outBigInt(out []interface{}, err error) (*big.Int, error) {
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func outBool(out []interface{}, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, fmt.Errorf("empty result")
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// outTuple converts a single tuple result into T.
func outTuple[T any](out []interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	return abi.ConvertType(out[0], new(T)).(*T), nil
}
