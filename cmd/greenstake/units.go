package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

var weiPerEther = big.NewInt(params.Ether)

// parseEther converts a decimal ETH amount into wei. More than 18 decimals is an error.
func parseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid ETH amount %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("ETH amount %q is negative", s)
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		return nil, fmt.Errorf("ETH amount %q has more than 18 decimals", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

// formatEther renders wei as a decimal ETH amount without trailing zeros.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	sign := ""
	v := new(big.Int).Set(wei)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	whole, frac := new(big.Int).QuoRem(v, weiPerEther, new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	digits := frac.String()
	fracStr := strings.TrimRight(strings.Repeat("0", 18-len(digits))+digits, "0")
	return sign + whole.String() + "." + fracStr
}
