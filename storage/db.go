package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// Database is a generic interface for a key-value store. It allows the
// strategy ledger to run against an in-memory backend in tests and a
// persistent backend in production.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, bool, error)
	Close() error
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	db.data[string(key)] = buf
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, true, nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() error {
	return nil
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key. Missing keys are reported via the
// boolean rather than an error so callers can distinguish absence from
// backend failure.
func (ldb *LevelDB) Get(key []byte) ([]byte, bool, error) {
	value, err := ldb.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}
