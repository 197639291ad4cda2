package strategy

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"nasdaqstrategy/core/types"
)

func encodeLogEntry(entry storedLogEntry) ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(entry)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode log entry: %w", err)
	}
	return encoded, nil
}

func decodeLogEntry(encoded []byte) (*LogEntry, error) {
	var stored storedLogEntry
	if err := rlp.DecodeBytes(encoded, &stored); err != nil {
		return nil, fmt.Errorf("ledger: decode log entry: %w", err)
	}
	if len(stored.Keys) != len(stored.Values) {
		return nil, fmt.Errorf("ledger: log entry attribute mismatch: %d keys, %d values", len(stored.Keys), len(stored.Values))
	}
	timestamp, err := uint64ToInt64(stored.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("ledger: log entry timestamp overflow: %w", err)
	}
	attrs := make(map[string]string, len(stored.Keys))
	for i, key := range stored.Keys {
		attrs[key] = stored.Values[i]
	}
	return &LogEntry{
		ID:        stored.ID,
		Sequence:  stored.Sequence,
		Timestamp: timestamp,
		Event:     types.Event{Type: stored.EventType, Attributes: attrs},
	}, nil
}
