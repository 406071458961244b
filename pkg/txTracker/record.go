package txTracker

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/greenstake/greenstake-go/pkg/contracts"
)

// State of a tracked transaction. Confirmed and Failed are terminal.
type State int

const (
	Submitted State = iota
	Pending
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Confirmed || s == Failed
}

type Kind string

const WriteKind Kind = "write"

// Event is a decoded log emitted by one of the registry contracts.
type Event struct {
	Contract contracts.Name
	Name     string
	Fields   map[string]interface{}
}

// Record is the lifecycle of one submitted write. Records are keyed by
// transaction hash and never reused.
type Record struct {
	ID           common.Hash
	Kind         Kind
	State        State
	Contract     contracts.Name
	Method       string
	From         common.Address
	SubmittedAt  time.Time
	SettledAt    time.Time
	Receipt      *types.Receipt
	Events       []Event
	Err          error
	RevertReason string
}
