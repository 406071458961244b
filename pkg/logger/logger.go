// Package logger builds the zap loggers used across the client.
package logger

import (
	"context"

	"github.com/greenstake/greenstake-go/pkg/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig holds the configuration for logger creation.
type LoggerConfig struct {
	// Debug enables debug-level logging when true, otherwise uses info level
	Debug bool
}

// NewLogger creates a production logger with JSON encoding and ISO8601 timestamps.
// Debug mode lowers the level to debug.
func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	mergedOptions := append([]zap.Option{zap.WithCaller(true)}, options...)

	c := zap.NewProductionConfig()
	c.EncoderConfig = zap.NewProductionEncoderConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return c.Build(mergedOptions...)
}

// SessionFields describes a wallet session as log fields.
func SessionFields(s session.WalletSession) []zap.Field {
	fields := []zap.Field{
		zap.String("state", s.State.String()),
		zap.Uint64("epoch", s.Epoch),
	}
	if s.Account != nil {
		fields = append(fields, zap.String("account", s.Account.Hex()))
	}
	if s.NetworkID != nil {
		fields = append(fields, zap.Uint64("chainId", *s.NetworkID))
	}
	if s.Err != nil {
		fields = append(fields, zap.Error(s.Err))
	}
	return fields
}

// LogSessionChanges logs every session snapshot received on updates until ctx
// is done or updates is closed.
func LogSessionChanges(ctx context.Context, updates <-chan session.WalletSession, l *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			l.Info("wallet_session", SessionFields(s)...)
		}
	}
}
