package sqlite

import (
	"database/sql"
	"fmt"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/backend"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

type Config struct {
	// Path of the database file, or ":memory:".
	Path string
}

// Builder opens one table per backend name inside the configured database.
func Builder(config *Config) backend.Builder {
	return func(name string) (backend.Backend, error) {
		return NewSqliteBackend(name, config)
	}
}

// sqliteBackend persists entries in a single table keyed by the raw key bytes.
// Expired rows are filtered on read and removed lazily.
type sqliteBackend struct {
	name   string
	path   string
	db     *sql.DB
	expiry time.Duration
	mu     sync.RWMutex
	closed bool
}

func NewSqliteBackend(name string, config *Config) (backend.Backend, error) {
	db, err := sql.Open(`sqlite`, config.Path)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot open sqlite backend [%s]`, name))
	}

	// a single connection keeps ":memory:" databases shared between calls
	db.SetMaxOpenConns(1)

	if config.Path != `:memory:` {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, errors.WithPrevious(err, `cannot enable WAL mode`)
		}
	}

	if _, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			k BLOB PRIMARY KEY,
			v BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		)`, table(name))); err != nil {
		db.Close()
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot create table for [%s]`, name))
	}

	return &sqliteBackend{
		name: name,
		path: config.Path,
		db:   db,
	}, nil
}

func table(name string) string {
	return fmt.Sprintf(`"kv_%s"`, name)
}

func (s *sqliteBackend) Name() string {
	return s.name
}

func (s *sqliteBackend) String() string {
	return fmt.Sprintf(`sqlite(%s:%s)`, s.path, s.name)
}

func (s *sqliteBackend) Persistent() bool {
	return s.path != `:memory:`
}

func (s *sqliteBackend) SetExpiry(d time.Duration) {
	s.expiry = d
}

func (s *sqliteBackend) Set(key []byte, value []byte, expiry time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New(fmt.Sprintf(`sqlite backend [%s] closed`, s.name))
	}

	if expiry == 0 {
		expiry = s.expiry
	}

	var expiresAt int64
	if expiry > 0 {
		expiresAt = time.Now().Add(expiry).UnixNano()
	}

	_, err := s.db.Exec(fmt.Sprintf(`
		INSERT INTO %s (k, v, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, expires_at = excluded.expires_at`, table(s.name)),
		key, value, expiresAt)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`sqlite backend [%s] set failed`, s.name))
	}

	return nil
}

func (s *sqliteBackend) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(fmt.Sprintf(`sqlite backend [%s] closed`, s.name))
	}

	var value []byte
	var expiresAt int64
	err := s.db.QueryRow(fmt.Sprintf(`SELECT v, expires_at FROM %s WHERE k = ?`, table(s.name)), key).
		Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`sqlite backend [%s] get failed`, s.name))
	}

	if expiresAt > 0 && time.Now().UnixNano() > expiresAt {
		return nil, nil
	}

	return value, nil
}

func (s *sqliteBackend) Delete(key []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New(fmt.Sprintf(`sqlite backend [%s] closed`, s.name))
	}

	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE k = ?`, table(s.name)), key); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`sqlite backend [%s] delete failed`, s.name))
	}

	return nil
}

// Iterator loads the live rows in key order.
func (s *sqliteBackend) Iterator() backend.Iterator {
	it := new(iterator)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		it.err = errors.New(fmt.Sprintf(`sqlite backend [%s] closed`, s.name))
		return it
	}

	rows, err := s.db.Query(fmt.Sprintf(`SELECT k, v FROM %s WHERE expires_at = 0 OR expires_at > ? ORDER BY k`, table(s.name)),
		time.Now().UnixNano())
	if err != nil {
		it.err = errors.WithPrevious(err, fmt.Sprintf(`sqlite backend [%s] iterate failed`, s.name))
		return it
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			it.err = errors.WithPrevious(err, `row scan failed`)
			return it
		}
		it.keys = append(it.keys, k)
		it.values = append(it.values, v)
	}

	if err := rows.Err(); err != nil {
		it.err = errors.WithPrevious(err, `row iteration failed`)
	}

	return it
}

func (s *sqliteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

func (s *sqliteBackend) Destroy() error {
	if err := s.Close(); err != nil {
		return err
	}

	if s.Persistent() {
		return os.Remove(s.path)
	}

	return nil
}

type iterator struct {
	keys   [][]byte
	values [][]byte
	cursor int
	err    error
}

func (i *iterator) SeekToFirst() { i.cursor = 0 }
func (i *iterator) Valid() bool   { return i.err == nil && i.cursor < len(i.keys) }
func (i *iterator) Next()         { i.cursor++ }
func (i *iterator) Key() []byte   { return i.keys[i.cursor] }
func (i *iterator) Value() []byte { return i.values[i.cursor] }
func (i *iterator) Error() error  { return i.err }
func (i *iterator) Close()        {}
