package localkv

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/tidwall/buntdb"
)

// LocalKV Structure to hold the db client
type LocalKV struct {
	db *buntdb.DB
}

// NewLocalKV constructor for the db client. A nil path opens an in-memory
// store, otherwise the db file is created under the given directory.
func NewLocalKV(databasePath *string) (*LocalKV, error) {
	var dbPath string

	if databasePath == nil {
		dbPath = ":memory:"
	} else {
		if err := os.MkdirAll(*databasePath, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %v", err)
		}
		dbPath = path.Join(*databasePath, "kv.db")
	}

	db, err := buntdb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %v", err)
	}

	// Cache entries are recomputable, skip fsync and shrinking.
	if err := db.SetConfig(buntdb.Config{
		SyncPolicy:         buntdb.Never,
		AutoShrinkDisabled: true,
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %v", err)
	}

	return &LocalKV{db: db}, nil
}

// Close closes the db
func (l *LocalKV) Close() error {
	return l.db.Close()
}

// Get gets a value from the db
func (l *LocalKV) Get(key string) (string, error) {
	var val string

	err := l.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}

		val = v
		return nil
	})

	return val, err
}

// Set sets a value in the db
func (l *LocalKV) Set(key, value string) error {
	return l.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, nil)

		return err
	})
}

// GetJSON unmarshals the value stored under key into out. The second return
// is false when the key is absent.
func (l *LocalKV) GetJSON(key string, out interface{}) (bool, error) {
	raw, err := l.Get(key)
	if err == buntdb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode cached value: %w", err)
	}
	return true, nil
}

// SetJSON stores value under key as JSON.
func (l *LocalKV) SetJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return l.Set(key, string(data))
}
