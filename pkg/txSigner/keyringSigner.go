package txSigner

import (
	"fmt"
	"runtime"

	"github.com/99designs/keyring"
)

const keyringService = "greenstake"

// KeyringConfig selects where wallet keys are stored.
type KeyringConfig struct {
	// FileDir is the directory of the encrypted file backend, used when no
	// desktop keychain is reachable.
	FileDir string
	// Password unlocks the file backend. Empty prompts on the terminal.
	Password string
}

// OpenKeyring opens the OS keychain, falling back to an encrypted file backend
// on headless Linux hosts.
func OpenKeyring(cfg *KeyringConfig) (keyring.Keyring, error) {
	kcfg := keyring.Config{
		ServiceName:              keyringService,
		KeychainTrustApplication: true,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.TerminalPrompt,
	}
	if cfg.Password != "" {
		kcfg.FilePasswordFunc = keyring.FixedStringPrompt(cfg.Password)
	}
	if runtime.GOOS == "linux" {
		kcfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		}
	}
	ring, err := keyring.Open(kcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return ring, nil
}

// StoreKey saves a hex private key under account after checking it parses.
func StoreKey(ring keyring.Keyring, account, privateKeyHex string) error {
	if _, err := NewPrivateKeySigner(privateKeyHex); err != nil {
		return err
	}
	err := ring.Set(keyring.Item{
		Key:   keyringService + "." + account,
		Data:  []byte(privateKeyHex),
		Label: "greenstake wallet " + account,
	})
	if err != nil {
		return fmt.Errorf("failed to store key for %s: %w", account, err)
	}
	return nil
}

// NewKeyringSigner loads the key stored under account and returns a signer for it.
func NewKeyringSigner(ring keyring.Keyring, account string) (*PrivateKeySigner, error) {
	item, err := ring.Get(keyringService + "." + account)
	if err != nil {
		return nil, fmt.Errorf("failed to load key for %s: %w", account, err)
	}
	return NewPrivateKeySigner(string(item.Data))
}
