// Package history keeps the most recent dispatch pass reports in a bbolt file.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/ofertabot/internal/dispatch"
)

var bucketReports = []byte("reports")

// DefaultKeep is the number of reports retained when none is configured
const DefaultKeep = 500

// Store persists pass reports ordered by start time
type Store struct {
	db   *bolt.DB
	keep int
}

// Open opens or creates the store at path. keep <= 0 uses DefaultKeep.
func Open(path string, keep int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReports)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create reports bucket: %w", err)
	}

	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Store{db: db, keep: keep}, nil
}

// Close closes the underlying file
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores r and drops the oldest reports beyond the retention limit
func (s *Store) Save(r *dispatch.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if err := b.Put(reportKey(r.StartedAt, r.ID), data); err != nil {
			return fmt.Errorf("failed to store report: %w", err)
		}

		excess := countKeys(b) - s.keep
		c := b.Cursor()
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// Recent returns up to n reports, newest first
func (s *Store) Recent(n int) ([]dispatch.Report, error) {
	var reports []dispatch.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReports).Cursor()
		for k, v := c.Last(); k != nil && (n <= 0 || len(reports) < n); k, v = c.Prev() {
			var r dispatch.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode report %x: %w", k, err)
			}
			reports = append(reports, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// Count returns the number of stored reports
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = countKeys(tx.Bucket(bucketReports))
		return nil
	})
	return n, err
}

// DeleteBefore removes reports started before cutoff and returns how many went
func (s *Store) DeleteBefore(cutoff time.Time) (int, error) {
	var deleted int
	limit := reportKey(cutoff, "")

	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReports).Cursor()
		for k, _ := c.First(); k != nil && string(k) < string(limit); k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// reportKey sorts by start time: big-endian unix nanos, then the report id
func reportKey(t time.Time, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	return append(key, id...)
}
