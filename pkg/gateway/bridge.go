package gateway

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// bridge turns wallet events into session transitions. Its handlers run on the
// provider's goroutine, in the order the wallet emitted the events. The
// listeners stay registered until Disconnect, so a wallet that re-announces an
// account after revoking access brings the session back.
type bridge struct {
	gw *Gateway
}

func (b *bridge) accountsChanged(accounts []common.Address) {
	g := b.gw

	g.mu.Lock()
	if g.connecting {
		g.held.accounts = append([]common.Address{}, accounts...)
		g.held.accountsSet = true
		g.mu.Unlock()
		return
	}
	if len(accounts) == 0 {
		g.lastAccount = nil
	} else {
		account := accounts[0]
		g.lastAccount = &account
	}
	snap := g.apply()
	g.mu.Unlock()

	g.cache.InvalidateAccounts()
	if len(accounts) == 0 {
		g.logger.Sugar().Infow("Wallet session ended", zap.String("reason", "accounts revoked"))
		return
	}
	g.logger.Sugar().Infow("Wallet account changed",
		zap.String("account", accounts[0].Hex()),
		zap.String("state", snap.State.String()),
	)
}

func (b *bridge) chainChanged(chainID uint64) {
	g := b.gw

	g.mu.Lock()
	if g.connecting {
		g.held.network = &chainID
		g.mu.Unlock()
		return
	}
	g.network = chainID
	snap := g.apply()
	g.mu.Unlock()

	g.cache.InvalidateAll()
	if chainID == g.config.SupportedChainID {
		g.logger.Sugar().Infow("Wallet on supported network",
			zap.Uint64("chainId", chainID),
			zap.String("state", snap.State.String()),
		)
	} else {
		g.logger.Sugar().Warnw("Wallet switched to unsupported network", zap.Uint64("chainId", chainID))
	}
}

func (b *bridge) disconnected(err error) {
	g := b.gw
	reason := "wallet disconnected"
	if err != nil {
		reason = err.Error()
	}

	g.mu.Lock()
	if g.connecting {
		g.held.accounts = nil
		g.held.accountsSet = true
		g.mu.Unlock()
		return
	}
	g.lastAccount = nil
	g.apply()
	g.mu.Unlock()

	g.cache.InvalidateAccounts()
	g.logger.Sugar().Infow("Wallet session ended", zap.String("reason", reason))
}
