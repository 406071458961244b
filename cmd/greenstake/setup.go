package main

import (
	"bufio"
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/greenstake/greenstake-go/pkg/chainManager"
	"github.com/greenstake/greenstake-go/pkg/contracts"
	"github.com/greenstake/greenstake-go/pkg/facade"
	"github.com/greenstake/greenstake-go/pkg/gateway"
	"github.com/greenstake/greenstake-go/pkg/logger"
	"github.com/greenstake/greenstake-go/pkg/readCache"
	"github.com/greenstake/greenstake-go/pkg/session"
	"github.com/greenstake/greenstake-go/pkg/txSigner"
	"github.com/greenstake/greenstake-go/pkg/txTracker"
	"github.com/greenstake/greenstake-go/pkg/walletProvider"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 4 * time.Second
	defaultWaitTimeout  = 5 * time.Minute
)

// client is one running instance: a single session, gateway and tracker.
type client struct {
	logger   *zap.Logger
	chains   *chainManager.ChainManager
	registry *contracts.Registry
	wallet   *walletProvider.LocalProvider
	session  *session.Session
	gateway  *gateway.Gateway
	cache    *readCache.Cache
	tracker  *txTracker.Tracker
	facade   *facade.Facade
	stopLogs func()
}

func setupLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{
		Debug: c.Bool("debug"),
	})
}

func setupChainManager(c *cli.Context) (*chainManager.ChainManager, error) {
	cm := chainManager.NewChainManager()

	if err := cm.AddChain(&chainManager.ChainConfig{
		ChainID: contracts.SupportedChainID,
		RPCUrl:  c.String("rpc-url"),
	}); err != nil {
		return nil, fmt.Errorf("failed to add chain %d: %w", contracts.SupportedChainID, err)
	}

	for _, chainConfig := range c.StringSlice("chains") {
		parts := strings.SplitN(chainConfig, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid chain configuration: %s (expected format: 'chainId:rpcUrl')", chainConfig)
		}

		chainID, success := new(big.Int).SetString(parts[0], 10)
		if !success {
			return nil, fmt.Errorf("invalid chain ID: %s", parts[0])
		}

		config := &chainManager.ChainConfig{
			ChainID: chainID.Uint64(),
			RPCUrl:  parts[1],
		}
		if err := cm.AddChain(config); err != nil {
			return nil, fmt.Errorf("failed to add chain %d: %w", config.ChainID, err)
		}
	}

	return cm, nil
}

func keyringConfig(c *cli.Context) *txSigner.KeyringConfig {
	dir := c.String("keyring-dir")
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	return &txSigner.KeyringConfig{
		FileDir:  dir,
		Password: c.String("keyring-password"),
	}
}

// setupTransactionSigner returns nil when no signing source is configured.
func setupTransactionSigner(c *cli.Context) (txSigner.ITransactionSigner, error) {
	if privateKey := c.String("tx-private-key"); privateKey != "" {
		return txSigner.NewPrivateKeySigner(privateKey)
	}

	if kmsKeyID := c.String("tx-aws-kms-key-id"); kmsKeyID != "" {
		region := c.String("tx-aws-region")
		return txSigner.NewAWSKMSSigner(kmsKeyID, region)
	}

	if account := c.String("keyring-account"); account != "" {
		ring, err := txSigner.OpenKeyring(keyringConfig(c))
		if err != nil {
			return nil, err
		}
		return txSigner.NewKeyringSigner(ring, account)
	}

	return nil, nil
}

func setupApprover(c *cli.Context) walletProvider.Approver {
	if c.Bool("yes") {
		return walletProvider.AutoApprove
	}
	reader := bufio.NewReader(os.Stdin)
	return func(_ context.Context, req walletProvider.Request) (bool, error) {
		switch req.Kind {
		case walletProvider.RequestConnect:
			fmt.Printf("Connect %d account(s) to GreenStake? [y/N] ", len(req.Accounts))
		case walletProvider.RequestSignTransaction:
			fmt.Printf("Sign transaction to %s sending %s ETH? [y/N] ", req.Tx.To().Hex(), formatEther(req.Tx.Value()))
		}
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

func setupClient(c *cli.Context) (*client, error) {
	l, err := setupLogger(c)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	cm, err := setupChainManager(c)
	if err != nil {
		return nil, fmt.Errorf("failed to setup chain manager: %w", err)
	}

	txSig, err := setupTransactionSigner(c)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transaction signer: %w", err)
	}

	registry, err := contracts.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load contract registry: %w", err)
	}

	cl := &client{
		logger:   l,
		chains:   cm,
		registry: registry,
		session:  session.New(),
		cache:    readCache.NewCache(),
	}

	// A nil interface, not a nil *LocalProvider, tells the gateway no wallet exists.
	var provider walletProvider.Provider
	if txSig != nil {
		cl.wallet, err = walletProvider.NewLocalProvider(cm, c.Uint64("chain-id"), []txSigner.ITransactionSigner{txSig},
			walletProvider.WithApprover(setupApprover(c)),
			walletProvider.WithLogger(l),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to setup wallet: %w", err)
		}
		provider = cl.wallet
	}

	updates, stop := cl.session.Watch()
	ctx, cancel := context.WithCancel(context.Background())
	go logger.LogSessionChanges(ctx, updates, l.Named("session"))
	cl.stopLogs = func() {
		cancel()
		stop()
	}

	cl.gateway = gateway.NewGateway(&gateway.GatewayConfig{SupportedChainID: contracts.SupportedChainID}, provider, cl.session, cl.cache, l)
	cl.tracker = txTracker.NewTracker(&txTracker.TrackerConfig{PollInterval: c.Duration("poll-interval")}, registry, cl.cache, l)
	cl.facade = facade.NewFacade(&facade.FacadeConfig{SupportedChainID: contracts.SupportedChainID}, registry, cl.gateway, cm, cl.cache, cl.tracker, l)
	return cl, nil
}

func (cl *client) Close() {
	for _, record := range cl.tracker.Records() {
		if !record.State.Terminal() {
			cl.logger.Sugar().Warnw("Transaction still unsettled at exit",
				zap.String("txHash", record.ID.Hex()),
				zap.String("method", record.Method),
				zap.String("state", record.State.String()),
			)
		}
	}
	cl.tracker.Close()
	if cl.wallet != nil {
		_ = cl.gateway.Disconnect()
	}
	cl.stopLogs()
	cl.chains.Close()
	_ = cl.logger.Sync()
}
