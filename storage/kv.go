package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KVStore layers RLP encoding over a raw Database so higher level ledgers can
// persist typed records and append-only lists without touching byte slices
// directly.
type KVStore struct {
	db Database
}

// NewKVStore wraps the supplied database.
func NewKVStore(db Database) *KVStore {
	return &KVStore{db: db}
}

// KVGet decodes the stored value for key into out. The boolean reports
// whether the key was present.
func (s *KVStore) KVGet(key []byte, out interface{}) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("kv store not initialised")
	}
	raw, ok, err := s.db.Get(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("kv store: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value with RLP and stores it under key.
func (s *KVStore) KVPut(key []byte, value interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("kv store not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("kv store: encode %q: %w", key, err)
	}
	return s.db.Put(key, encoded)
}

// KVAppend appends a raw entry to the list stored under key. Lists are
// persisted as an RLP-encoded slice of byte strings.
func (s *KVStore) KVAppend(key []byte, value []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("kv store not initialised")
	}
	var entries [][]byte
	if err := s.KVGetList(key, &entries); err != nil {
		return err
	}
	entries = append(entries, value)
	encoded, err := rlp.EncodeToBytes(entries)
	if err != nil {
		return fmt.Errorf("kv store: encode list %q: %w", key, err)
	}
	return s.db.Put(key, encoded)
}

// KVGetList decodes the list stored under key into out. A missing key yields
// an empty list rather than an error.
func (s *KVStore) KVGetList(key []byte, out interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("kv store not initialised")
	}
	raw, ok, err := s.db.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return fmt.Errorf("kv store: decode list %q: %w", key, err)
	}
	return nil
}
