package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(&LoggerConfig{Debug: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewLogger(&LoggerConfig{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSessionFields(t *testing.T) {
	account := common.HexToAddress("0xAAA0000000000000000000000000000000000AAA")
	chainID := uint64(11155111)

	fields := SessionFields(session.WalletSession{Account: &account, NetworkID: &chainID, State: session.Connected, Epoch: 3})
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	assert.Equal(t, "connected", enc.Fields["state"])
	assert.Equal(t, account.Hex(), enc.Fields["account"])
	assert.Equal(t, chainID, enc.Fields["chainId"])

	fields = SessionFields(session.WalletSession{State: session.Error, Err: errors.New("boom")})
	assert.Len(t, fields, 3)
}

func TestLogSessionChanges(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := session.New()
	updates, stop := s.Watch()

	done := make(chan struct{})
	go func() {
		LogSessionChanges(context.Background(), updates, zap.New(core))
		close(done)
	}()

	s.SetConnecting()
	s.SetDisconnected()
	stop()
	<-done

	require.NotZero(t, logs.Len())
	assert.Equal(t, "wallet_session", logs.All()[0].Message)
}
