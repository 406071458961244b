// Package chainManager manages the RPC connections the client reads through when
// no wallet is connected, and the connections a local wallet provider uses for
// each network it can be switched to.
package chainManager

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrChainNotFound is returned when a requested chain ID is not found in the manager
	ErrChainNotFound = errors.New("chain not found")
)

// IChainManager defines the interface for managing blockchain connections.
type IChainManager interface {
	// AddChain dials the RPC URL of cfg and registers the connection
	AddChain(cfg *ChainConfig) error
	// GetChainForId retrieves a chain connection by its chain ID
	GetChainForId(chainId uint64) (*Chain, error)
}

// ChainConfig holds the configuration for connecting to a blockchain.
type ChainConfig struct {
	// ChainID is the unique identifier for the blockchain network
	ChainID uint64
	// RPCUrl is the URL endpoint for connecting to the blockchain RPC
	RPCUrl string
}

// Chain represents an active connection to a blockchain.
type Chain struct {
	config *ChainConfig
	// RPCClient is the active client connection for this chain
	RPCClient EthClientInterface
}

// ChainID returns the id the chain was registered under.
func (c *Chain) ChainID() uint64 {
	return c.config.ChainID
}

// ChainManager implements IChainManager. It is safe for concurrent use.
type ChainManager struct {
	Chains sync.Map // map[uint64]*Chain
}

// NewChainManager creates a new ChainManager with an empty chain registry.
func NewChainManager() *ChainManager {
	return &ChainManager{}
}

// AddChain adds a new blockchain connection to the manager.
// This method establishes a connection to the specified RPC URL and
// stores the resulting chain connection for future use.
//
// Parameters:
//   - cfg: The chain configuration containing chain ID and RPC URL
//
// Returns:
//   - error: An error if the chain already exists or connection fails
func (cm *ChainManager) AddChain(cfg *ChainConfig) error {
	if _, exists := cm.Chains.Load(cfg.ChainID); exists {
		return fmt.Errorf("chain with ID %d already exists", cfg.ChainID)
	}
	client, err := ethclient.Dial(cfg.RPCUrl)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC URL %s: %w", cfg.RPCUrl, err)
	}
	return cm.AddChainClient(cfg, client)
}

// AddChainClient registers an already constructed client for cfg.ChainID.
func (cm *ChainManager) AddChainClient(cfg *ChainConfig, client EthClientInterface) error {
	if _, loaded := cm.Chains.LoadOrStore(cfg.ChainID, &Chain{config: cfg, RPCClient: client}); loaded {
		return fmt.Errorf("chain with ID %d already exists", cfg.ChainID)
	}
	return nil
}

// GetChainForId retrieves a chain connection by its chain ID.
//
// Returns:
//   - *Chain: The chain connection if found
//   - error: ErrChainNotFound if the chain ID is not registered
func (cm *ChainManager) GetChainForId(chainId uint64) (*Chain, error) {
	value, exists := cm.Chains.Load(chainId)
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrChainNotFound, chainId)
	}
	chain, ok := value.(*Chain)
	if !ok {
		return nil, fmt.Errorf("invalid chain type stored for ID %d", chainId)
	}
	return chain, nil
}

// Close closes every registered client that supports closing.
func (cm *ChainManager) Close() {
	cm.Chains.Range(func(_, value any) bool {
		if c, ok := value.(*Chain); ok {
			if closer, ok := c.RPCClient.(interface{ Close() }); ok {
				closer.Close()
			}
		}
		return true
	})
}
