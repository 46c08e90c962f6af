package store

import (
	"bytes"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// db wraps the embedded ordered key-value library the store engine persists
// to. Spec.md §4.1 treats this collaborator as offering only point get,
// point put, and a forward ordered scan; everything else (rate limiting,
// delayed visibility) is layered on top in store.go and does not depend on
// any stronger atomicity than single-key put/get.
type db struct {
	bolt   *bolt.DB
	bucket []byte
}

var recordsBucket = []byte("records")

// openDB opens (creating if necessary) the bbolt file under directory.
func openDB(directory string) (*db, error) {
	path := filepath.Join(directory, "tidesim.db")
	bdb, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &db{bolt: bdb, bucket: recordsBucket}, nil
}

func (d *db) close() error {
	return d.bolt.Close()
}

// put durably stores value under key, replacing any prior value.
func (d *db) put(key, value []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(d.bucket).Put(key, value)
	})
}

// get returns the visible value for key, or ok=false if absent.
func (d *db) get(key []byte) (value []byte, ok bool, err error) {
	err = d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(d.bucket).Get(key)
		if v != nil {
			ok = true
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, ok, err
}

// scanEntry is one key/value pair yielded by scan.
type scanEntry struct {
	Key   []byte
	Value []byte
}

// scan walks the durable store in ascending byte order starting at
// startInclusive (or the minimum key if nil), stopping before endExclusive
// (or running to the maximum key if nil), yielding at most limit entries (or
// all matching entries if limit < 0). The whole walk runs inside a single
// bbolt read transaction, giving it snapshot isolation against concurrent
// writes — this resolves spec.md §9's open question about scan consistency
// in favor of "snapshot at scan start".
func (d *db) scan(startInclusive, endExclusive []byte, limit int) ([]scanEntry, error) {
	var out []scanEntry

	err := d.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(d.bucket).Cursor()

		var k, v []byte
		if startInclusive != nil {
			k, v = c.Seek(startInclusive)
		} else {
			k, v = c.First()
		}

		for ; k != nil; k, v = c.Next() {
			if endExclusive != nil && bytes.Compare(k, endExclusive) >= 0 {
				break
			}
			if limit >= 0 && len(out) >= limit {
				break
			}
			out = append(out, scanEntry{
				Key:   append([]byte(nil), k...),
				Value: append([]byte(nil), v...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
