package state

import (
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"eurocredit/storage"
)

var errInvalidSnapshot = errors.New("state: invalid snapshot id")

// StateDB layers a write cache and an undo journal over a storage.Database.
// Writes stay in memory until Commit flushes them in one batch, and any
// suffix of writes can be undone with RevertToSnapshot.
type StateDB struct {
	mu      sync.RWMutex
	db      storage.Database
	dirty   map[string]cachedValue
	journal []journalEntry
}

type cachedValue struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    cachedValue
	hadPrev bool
}

// New creates a state view on top of the provided database.
func New(db storage.Database) *StateDB {
	return &StateDB{db: db, dirty: make(map[string]cachedValue)}
}

// Committed returns a view over the same database without the staged writes
// of s. Reads through it see only committed state.
func (s *StateDB) Committed() *StateDB {
	return New(s.db)
}

// Key derives a fixed-length storage key from a namespace and its components.
func Key(namespace string, parts ...[]byte) []byte {
	size := len(namespace)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, namespace...)
	for _, part := range parts {
		buf = append(buf, ':')
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

// Get returns the value stored under key or nil when the key is absent.
func (s *StateDB) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cached, ok := s.dirty[string(key)]; ok {
		if cached.deleted {
			return nil, nil
		}
		return append([]byte(nil), cached.value...), nil
	}
	value, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read: %w", err)
	}
	return value, nil
}

// Put stages a write.
func (s *StateDB) Put(key, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(key)
	s.dirty[string(key)] = cachedValue{value: append([]byte(nil), value...)}
}

// Delete stages a removal.
func (s *StateDB) Delete(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(key)
	s.dirty[string(key)] = cachedValue{deleted: true}
}

func (s *StateDB) record(key []byte) {
	prev, ok := s.dirty[string(key)]
	s.journal = append(s.journal, journalEntry{key: string(key), prev: prev, hadPrev: ok})
}

// Snapshot returns an identifier for the current journal position.
func (s *StateDB) Snapshot() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.journal)
}

// RevertToSnapshot undoes every staged write made after the snapshot was
// taken.
func (s *StateDB) RevertToSnapshot(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id > len(s.journal) {
		panic(errInvalidSnapshot)
	}
	for i := len(s.journal) - 1; i >= id; i-- {
		entry := s.journal[i]
		if entry.hadPrev {
			s.dirty[entry.key] = entry.prev
		} else {
			delete(s.dirty, entry.key)
		}
	}
	s.journal = s.journal[:id]
}

// Commit flushes the staged writes to the backing database atomically and
// clears the journal.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		s.journal = s.journal[:0]
		return nil
	}
	batch := s.db.NewBatch()
	for key, cached := range s.dirty {
		if cached.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), cached.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	s.dirty = make(map[string]cachedValue)
	s.journal = s.journal[:0]
	return nil
}

// Discard drops every staged write.
func (s *StateDB) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = make(map[string]cachedValue)
	s.journal = s.journal[:0]
}

// Pending reports the number of keys with staged writes.
func (s *StateDB) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty)
}

// GetUint256 decodes an RLP encoded integer, returning zero for absent keys.
func (s *StateDB) GetUint256(key []byte) (*uint256.Int, error) {
	data, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return new(uint256.Int), nil
	}
	value := new(uint256.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, fmt.Errorf("state: decode integer: %w", err)
	}
	return value, nil
}

// SetUint256 stores value, deleting the key when value is zero.
func (s *StateDB) SetUint256(key []byte, value *uint256.Int) error {
	if value == nil || value.IsZero() {
		s.Delete(key)
		return nil
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode integer: %w", err)
	}
	s.Put(key, encoded)
	return nil
}

// GetRLP decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (s *StateDB) GetRLP(key []byte, out interface{}) (bool, error) {
	data, err := s.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

// PutRLP encodes value and stages it under key.
func (s *StateDB) PutRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	s.Put(key, encoded)
	return nil
}
