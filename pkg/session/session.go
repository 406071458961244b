// Package session holds the single wallet session of a running client. The
// session is an explicit object: it is constructed once, injected where it is
// needed, and read only through value snapshots.
package session

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// State is the connection state of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// WalletSession is a snapshot of the session. Account and NetworkID are set
// only while Connected; Err is set only in the Error state.
type WalletSession struct {
	Account   *common.Address
	NetworkID *uint64
	State     State
	Err       error
	// Epoch changes whenever the identity behind the session changes.
	Epoch uint64
}

// IsConnected reports whether the snapshot is Connected.
func (w WalletSession) IsConnected() bool {
	return w.State == Connected
}

// Session guards the current WalletSession.
type Session struct {
	mu       sync.RWMutex
	current  WalletSession
	watchers map[chan WalletSession]struct{}
}

// New returns a Disconnected session.
func New() *Session {
	return &Session{
		watchers: make(map[chan WalletSession]struct{}),
	}
}

// Snapshot returns a copy of the current session.
func (s *Session) Snapshot() WalletSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.current)
}

// Epoch returns the current epoch.
func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Epoch
}

// SetConnecting marks a connection attempt in progress.
func (s *Session) SetConnecting() WalletSession {
	return s.update(func(w *WalletSession) {
		w.State = Connecting
		w.Account, w.NetworkID, w.Err = nil, nil, nil
	})
}

// SetConnected binds the session to account on networkID.
func (s *Session) SetConnected(account common.Address, networkID uint64) WalletSession {
	return s.update(func(w *WalletSession) {
		w.State = Connected
		w.Account, w.NetworkID, w.Err = &account, &networkID, nil
	})
}

// SetAccount switches the account of a Connected session. It is a no-op in any other state.
func (s *Session) SetAccount(account common.Address) WalletSession {
	s.mu.Lock()
	if s.current.State != Connected || *s.current.Account == account {
		out := copySession(s.current)
		s.mu.Unlock()
		return out
	}
	s.mu.Unlock()
	return s.update(func(w *WalletSession) {
		if w.State == Connected {
			w.Account = &account
		}
	})
}

// SetError moves the session into the Error state with err.
func (s *Session) SetError(err error) WalletSession {
	return s.update(func(w *WalletSession) {
		w.State = Error
		w.Account, w.NetworkID, w.Err = nil, nil, err
	})
}

// SetDisconnected resets the session.
func (s *Session) SetDisconnected() WalletSession {
	return s.update(func(w *WalletSession) {
		w.State = Disconnected
		w.Account, w.NetworkID, w.Err = nil, nil, nil
	})
}

// Watch returns a channel carrying the latest session after every change.
// A slow reader only sees the most recent snapshot. Call the returned func to stop.
func (s *Session) Watch() (<-chan WalletSession, func()) {
	ch := make(chan WalletSession, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) update(fn func(w *WalletSession)) WalletSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.current)
	s.current.Epoch++
	out := copySession(s.current)
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- copySession(out)
	}
	return out
}

func copySession(w WalletSession) WalletSession {
	out := w
	if w.Account != nil {
		a := *w.Account
		out.Account = &a
	}
	if w.NetworkID != nil {
		n := *w.NetworkID
		out.NetworkID = &n
	}
	return out
}
