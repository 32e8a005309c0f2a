package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDB is a Store backed by an on-disk leveldb database.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) the database directory at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: leveldb path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open leveldb (%s): %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) GetBool(key string) (bool, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, false, ErrEmptyKey
	}
	raw, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, false, nil
	}
	if errors.Is(err, leveldb.ErrClosed) {
		return false, false, ErrClosed
	}
	if err != nil {
		return false, false, fmt.Errorf("store: get %q: %w", key, err)
	}
	v, err := strconv.ParseBool(string(raw))
	if err != nil {
		return false, false, fmt.Errorf("store: decode %q: %w", key, err)
	}
	return v, true, nil
}

func (l *LevelDB) PutBool(key string, value bool) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	if err := l.db.Put([]byte(key), []byte(strconv.FormatBool(value)), nil); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("store: put %q: %w", key, err)
	}
	return nil
}

func (l *LevelDB) Delete(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	if err := l.db.Delete([]byte(key), nil); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("store: delete %q: %w", key, err)
	}
	return nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
