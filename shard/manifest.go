package shard

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/boltdb/bolt"
)

// ManifestName is the file, hidden from scans, holding a running migration.
const ManifestName = ".sipi-migration.db"

// checkpointEvery is how many steps run between two cursor writes.
const checkpointEvery = 1000

// stepsPerTx bounds the size of a single write transaction.
const stepsPerTx = 10000

var (
	metaBucket  = []byte("meta")
	stepsBucket = []byte("steps")
	headerKey   = []byte("header")
	cursorKey   = []byte("cursor")
)

// Header describes the level change recorded in a manifest.
type Header struct {
	From    int       `json:"from"`
	To      int       `json:"to"`
	Target  int       `json:"target"`
	Steps   int       `json:"steps"`
	Created time.Time `json:"created"`
}

// manifest is the write-ahead log of a migration: the steps are committed
// before the first one runs and a cursor follows the progress.
type manifest struct {
	db   *bolt.DB
	path string
}

func openManifest(path string) (*manifest, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: path, Err: err}
	}
	return &manifest{db: db, path: path}, nil
}

func (m *manifest) Close() error {
	return m.db.Close()
}

func itob(i int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return b
}

func clearBuckets(tx *bolt.Tx) error {
	for _, name := range [][]byte{metaBucket, stepsBucket} {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
	}
	return nil
}

// begin records a new plan. The header goes in last so a plan interrupted
// while being written is never seen as pending.
func (m *manifest) begin(h Header, steps []Step) error {
	h.Steps = len(steps)
	if h.Created.IsZero() {
		h.Created = time.Now().UTC()
	}

	err := m.db.Update(func(tx *bolt.Tx) error {
		if err := clearBuckets(tx); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(metaBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(stepsBucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	for start := 0; start < len(steps); start += stepsPerTx {
		end := start + stepsPerTx
		if end > len(steps) {
			end = len(steps)
		}
		err := m.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(stepsBucket)
			for i := start; i < end; i++ {
				value, err := json.Marshal(steps[i])
				if err != nil {
					return err
				}
				if err := b.Put(itob(i), value); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
	}

	return m.db.Update(func(tx *bolt.Tx) error {
		value, err := json.Marshal(h)
		if err != nil {
			return err
		}
		b := tx.Bucket(metaBucket)
		if err := b.Put(cursorKey, []byte("0")); err != nil {
			return err
		}
		return b.Put(headerKey, value)
	})
}

// pending returns the recorded header and cursor, or nil when the manifest
// is clean.
func (m *manifest) pending() (*Header, int, error) {
	var h *Header
	cursor := 0
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return nil
		}
		value := b.Get(headerKey)
		if value == nil {
			return nil
		}
		h = &Header{}
		if err := json.Unmarshal(value, h); err != nil {
			return err
		}
		if c := b.Get(cursorKey); c != nil {
			n, err := strconv.Atoi(string(c))
			if err != nil {
				return err
			}
			cursor = n
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("manifest: %w", err)
	}
	return h, cursor, nil
}

func (m *manifest) steps() ([]Step, error) {
	var steps []Step
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(stepsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var s Step
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			steps = append(steps, s)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return steps, nil
}

func (m *manifest) checkpoint(cursor int) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return fmt.Errorf("manifest: no plan to checkpoint")
		}
		return b.Put(cursorKey, []byte(strconv.Itoa(cursor)))
	})
}

// finish truncates the manifest once its plan has fully run or been undone.
func (m *manifest) finish() error {
	return m.db.Update(clearBuckets)
}

// removeManifest deletes a clean manifest file.
func removeManifest(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &FilesystemError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
