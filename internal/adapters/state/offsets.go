// Package state persists follow progress across runs.
package state

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

var OffsetBucket = []byte("offsets")

// BoltOffsetStore records, per followed file, the byte offset just past the
// last line written. Keys are absolute paths.
type BoltOffsetStore struct {
	db   *bolt.DB
	path string
}

func OpenBoltOffsetStore(path string) (*BoltOffsetStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	// A second follower on the same state file fails instead of blocking.
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:    time.Second,
		NoGrowSync: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(OffsetBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Debug().Str("path", path).Msg("Offset store opened")
	return &BoltOffsetStore{db: db, path: path}, nil
}

// Load returns the saved offset for source. ok is false when nothing was
// saved yet.
func (s *BoltOffsetStore) Load(source string) (offset int64, ok bool, err error) {
	key, err := sourceKey(source)
	if err != nil {
		return 0, false, err
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(OffsetBucket).Get(key)
		if len(v) != 8 {
			return nil
		}
		offset, ok = int64(binary.BigEndian.Uint64(v)), true
		return nil
	})
	return offset, ok, err
}

func (s *BoltOffsetStore) Save(source string, offset int64) error {
	if offset < 0 {
		return fmt.Errorf("negative offset %d for %s", offset, source)
	}
	key, err := sourceKey(source)
	if err != nil {
		return err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(offset))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(OffsetBucket).Put(key, buf[:])
	})
}

func (s *BoltOffsetStore) Path() string {
	return s.path
}

func (s *BoltOffsetStore) Close() error {
	return s.db.Close()
}

func sourceKey(source string) ([]byte, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", source, err)
	}
	return []byte(abs), nil
}
