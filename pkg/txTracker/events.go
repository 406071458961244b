package txTracker

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// decodeEvents decodes the receipt logs emitted by registry contracts. Logs
// from other contracts, or that do not match a known event, are skipped.
func (t *Tracker) decodeEvents(receipt *types.Receipt) []Event {
	var out []Event
	for _, lg := range receipt.Logs {
		if lg == nil || len(lg.Topics) == 0 {
			continue
		}
		desc, ok := t.registry.ByAddress(lg.Address)
		if !ok {
			continue
		}
		ev, err := desc.ABI.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}
		fields := make(map[string]interface{})
		if len(lg.Data) > 0 {
			if err := ev.Inputs.UnpackIntoMap(fields, lg.Data); err != nil {
				t.logger.Sugar().Debugw("Failed to unpack event data", zap.String("event", ev.Name), zap.Error(err))
				continue
			}
		}
		var indexed abi.Arguments
		for _, arg := range ev.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			t.logger.Sugar().Debugw("Failed to parse event topics", zap.String("event", ev.Name), zap.Error(err))
			continue
		}
		out = append(out, Event{Contract: desc.Name, Name: ev.Name, Fields: fields})
	}
	return out
}
