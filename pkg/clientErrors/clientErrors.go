// Package clientErrors defines the error taxonomy shared by the wallet gateway,
// the contract call facade and the transaction tracker. Every kind is a sentinel
// that callers match with errors.Is; Message turns any of them into a message a
// user can act on.
package clientErrors

import (
	"errors"
)

var (
	// ErrWalletUnavailable is returned when no wallet provider is present
	ErrWalletUnavailable = errors.New("wallet unavailable")
	// ErrUserRejected is returned when the user declined a wallet prompt
	ErrUserRejected = errors.New("user rejected request")
	// ErrNotConnected is returned when an operation needs an active wallet session
	ErrNotConnected = errors.New("wallet not connected")
	// ErrUnsupportedNetwork is returned while the wallet is on a chain other than the supported one
	ErrUnsupportedNetwork = errors.New("unsupported network")
	// ErrSubmissionRejected is returned when a write was rejected before entering the pending pool
	ErrSubmissionRejected = errors.New("transaction submission rejected")
	// ErrTransactionFailed is the terminal error of a reverted or dropped transaction
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrStaleHandle is returned when a call handle outlived the session it was derived from
	ErrStaleHandle = errors.New("call handle is stale")
	// ErrUnknownContract is returned for a logical contract name outside the registry
	ErrUnknownContract = errors.New("unknown contract")
	// ErrUnknownMethod is returned for a method that is not part of a contract's interface
	ErrUnknownMethod = errors.New("unknown contract method")
	// ErrUnknownTransaction is returned when the tracker has no record for an id
	ErrUnknownTransaction = errors.New("unknown transaction")
)

var messages = []struct {
	err error
	msg string
}{
	// Checked in order: a refused handle wraps ErrNotConnected around the
	// session error, and only an unsupported network outranks it.
	{ErrUnsupportedNetwork, "Your wallet is on an unsupported network. Switch to Sepolia to continue."},
	{ErrNotConnected, "Connect your wallet first."},
	{ErrWalletUnavailable, "No wallet detected. Install or configure a wallet and try again."},
	{ErrUserRejected, "The request was declined in your wallet. Approve it to continue."},
	{ErrSubmissionRejected, "The network rejected the transaction. Check your balance and gas settings, then retry."},
	{ErrTransactionFailed, "The transaction failed on chain."},
	{ErrStaleHandle, "Your wallet account or network changed. Refresh and try again."},
	{ErrUnknownContract, "Unknown contract."},
	{ErrUnknownMethod, "Unknown contract method."},
	{ErrUnknownTransaction, "Unknown transaction."},
}

// Message maps err to a distinct, user-facing message. Errors outside the
// taxonomy get the generic message.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Something went wrong. Please try again."
}

// RevertError carries the revert reason of a transaction that was included but
// failed during execution. It unwraps to ErrTransactionFailed.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrTransactionFailed.Error()
	}
	return "transaction reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return ErrTransactionFailed
}
