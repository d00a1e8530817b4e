package checklist

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// durable keys
const (
	KeyToken           = "token"
	KeyNamespacePrefix = "namespace_prefix"
	KeyNamespace       = "namespace"
	KeyHideCompleted   = "hideCompleted"
	KeyIsGrouped       = "isGrouped"
)

// the durable key-value collaborator. values survive across sessions
type KeyValueStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key string, value string) error
	Delete(key string) error
}

type MemoryKeyValueStore struct {
	mutex  sync.Mutex
	values map[string]string
}

func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{
		values: map[string]string{},
	}
}

func (self *MemoryKeyValueStore) Get(key string) (string, bool, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	value, ok := self.values[key]
	return value, ok, nil
}

func (self *MemoryKeyValueStore) Set(key string, value string) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.values[key] = value
	return nil
}

func (self *MemoryKeyValueStore) Delete(key string) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.values, key)
	return nil
}

const sqliteKeyValueSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type SqliteKeyValueStore struct {
	db *sql.DB
}

// `path` may be ":memory:"
func OpenSqliteKeyValueStore(path string) (*SqliteKeyValueStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteKeyValueSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteKeyValueStore{
		db: db,
	}, nil
}

func (self *SqliteKeyValueStore) Get(key string) (string, bool, error) {
	var value string
	err := self.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (self *SqliteKeyValueStore) Set(key string, value string) error {
	_, err := self.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key,
		value,
	)
	return err
}

func (self *SqliteKeyValueStore) Delete(key string) error {
	_, err := self.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (self *SqliteKeyValueStore) Close() error {
	return self.db.Close()
}
