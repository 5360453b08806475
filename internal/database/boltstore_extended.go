// Enhanced BoltDB implementation with retention purge capabilities
// internal/database/boltstore_extended.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

// ExtendedBoltStore implements ExtendedStore interface
type ExtendedBoltStore struct {
	*BoltStore
}

// NewExtendedBoltStore creates a new extended BoltDB store
func NewExtendedBoltStore(path string) (ExtendedStore, error) {
	baseStore, err := NewBoltStore(path)
	if err != nil {
		return nil, err
	}

	return &ExtendedBoltStore{
		BoltStore: baseStore.(*BoltStore),
	}, nil
}

// DeleteEventsBefore removes uptime events older than cutoffTime
func (s *ExtendedBoltStore) DeleteEventsBefore(ctx context.Context, cutoffTime time.Time) (int, error) {
	deleted, err := s.deleteBeforeTime(EventsBucket, func(v []byte) (time.Time, bool) {
		var event UptimeEvent
		if err := json.Unmarshal(v, &event); err != nil {
			return time.Time{}, false
		}
		return event.Timestamp, true
	}, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"deleted_count": deleted,
		"cutoff_time":   cutoffTime,
	}).Info("Deleted old uptime events")

	return deleted, nil
}

// DeleteMetricsBefore removes metric entries older than cutoffTime
func (s *ExtendedBoltStore) DeleteMetricsBefore(ctx context.Context, cutoffTime time.Time) (int, error) {
	deleted, err := s.deleteKeyedBefore(MetricsBucket, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old metrics: %w", err)
	}
	return deleted, nil
}

// DeleteReportsBefore removes report snapshots older than cutoffTime
func (s *ExtendedBoltStore) DeleteReportsBefore(ctx context.Context, cutoffTime time.Time) (int, error) {
	deleted, err := s.deleteKeyedBefore(ReportsBucket, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reports: %w", err)
	}
	return deleted, nil
}

// DeleteResolvedAlertsBefore removes alerts that were resolved before cutoffTime.
// Open and acknowledged-but-unresolved alerts are never purged.
func (s *ExtendedBoltStore) DeleteResolvedAlertsBefore(ctx context.Context, cutoffTime time.Time) (int, error) {
	deletedCount := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(AlertsBucket)
		if b == nil {
			return nil
		}

		var keysToDelete [][]byte
		cursor := b.Cursor()

		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var alert SLAAlert
			if err := json.Unmarshal(v, &alert); err != nil {
				continue
			}
			if !alert.Resolved || alert.ResolvedAt == nil {
				continue
			}
			if alert.ResolvedAt.Before(cutoffTime) {
				keysToDelete = append(keysToDelete, copyBytes(k))
			}
		}

		for _, key := range keysToDelete {
			if err := b.Delete(key); err != nil {
				logrus.WithError(err).Error("Failed to delete resolved alert")
				continue
			}
			deletedCount++
		}

		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved alerts: %w", err)
	}

	if deletedCount > 0 {
		logrus.WithFields(logrus.Fields{
			"deleted_count": deletedCount,
			"cutoff_time":   cutoffTime,
		}).Info("Deleted old resolved alerts")
	}

	return deletedCount, nil
}

// DeleteExpiredSessions removes session tokens whose expiry is in the past
func (s *ExtendedBoltStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	deleted, err := s.deleteBeforeTime(SessionsBucket, func(v []byte) (time.Time, bool) {
		var session Session
		if err := json.Unmarshal(v, &session); err != nil {
			return time.Time{}, false
		}
		return session.ExpiresAt, true
	}, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return deleted, nil
}

// deleteBeforeTime removes all entries in a bucket whose extracted timestamp
// is before the cutoff.
func (s *ExtendedBoltStore) deleteBeforeTime(bucket []byte, extract func([]byte) (time.Time, bool), cutoff time.Time) (int, error) {
	deletedCount := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}

		var keysToDelete [][]byte
		cursor := b.Cursor()

		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			ts, ok := extract(v)
			if !ok {
				continue
			}
			if ts.Before(cutoff) {
				keysToDelete = append(keysToDelete, copyBytes(k))
			}
		}

		for _, key := range keysToDelete {
			if err := b.Delete(key); err != nil {
				logrus.WithError(err).Error("Failed to delete entry")
				continue
			}
			deletedCount++
		}

		return nil
	})

	return deletedCount, err
}

// deleteKeyedBefore removes entries from a bucket whose keys are prefixed with
// a zero-padded UnixNano timestamp, using a cheap range delete.
func (s *ExtendedBoltStore) deleteKeyedBefore(bucket []byte, cutoffTime time.Time) (int, error) {
	deletedCount := 0
	cutoffKey := []byte(fmt.Sprintf("%020d", cutoffTime.UnixNano()))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}

		var keysToDelete [][]byte
		cursor := b.Cursor()

		for k, _ := cursor.First(); k != nil && string(k) < string(cutoffKey); k, _ = cursor.Next() {
			keysToDelete = append(keysToDelete, copyBytes(k))
		}

		for _, key := range keysToDelete {
			if err := b.Delete(key); err != nil {
				logrus.WithError(err).Error("Failed to delete entry")
				continue
			}
			deletedCount++
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	if deletedCount > 0 {
		logrus.WithFields(logrus.Fields{
			"bucket":        string(bucket),
			"deleted_count": deletedCount,
			"cutoff_time":   cutoffTime,
		}).Info("Deleted old entries")
	}

	return deletedCount, nil
}

// GetDatabaseStats returns information about database size and health
func (s *ExtendedBoltStore) GetDatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(MetricsBucket); b != nil {
			stats.TotalMetrics = b.Stats().KeyN
		}
		if b := tx.Bucket(AlertsBucket); b != nil {
			stats.TotalAlerts = b.Stats().KeyN
		}
		if b := tx.Bucket(ReportsBucket); b != nil {
			stats.TotalReports = b.Stats().KeyN
		}
		if b := tx.Bucket(SessionsBucket); b != nil {
			stats.TotalSessions = b.Stats().KeyN
		}

		if b := tx.Bucket(EventsBucket); b != nil {
			stats.TotalEvents = b.Stats().KeyN

			// Key order is per-service, so the log must be scanned to find
			// the global oldest and newest timestamps.
			cursor := b.Cursor()
			for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
				var event UptimeEvent
				if err := json.Unmarshal(v, &event); err != nil {
					continue
				}
				if stats.OldestEvent.IsZero() || event.Timestamp.Before(stats.OldestEvent) {
					stats.OldestEvent = event.Timestamp
				}
				if event.Timestamp.After(stats.NewestEvent) {
					stats.NewestEvent = event.Timestamp
				}
			}
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get database stats: %w", err)
	}

	// Get file size
	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.DatabaseSize = fileInfo.Size()
	}

	return stats, nil
}

// CompactDatabase performs database maintenance and compaction
func (s *ExtendedBoltStore) CompactDatabase(ctx context.Context) error {
	logrus.Info("Starting database compaction")

	// BoltDB doesn't have built-in compaction, but we can:
	// 1. Create a new database
	// 2. Copy all data to it
	// 3. Replace the old database

	backupPath := s.path + ".compact.tmp"

	newDB, err := bbolt.Open(backupPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	defer func() {
		newDB.Close()
		os.Remove(backupPath) // Clean up on error
	}()

	buckets := [][]byte{EventsBucket, MetricsBucket, AlertsBucket, ReportsBucket, SessionsBucket, MetaBucket}

	err = newDB.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucket(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize compact database: %w", err)
	}

	// Copy data from old to new database
	err = s.db.View(func(oldTx *bbolt.Tx) error {
		return newDB.Update(func(newTx *bbolt.Tx) error {
			for _, bucketName := range buckets {
				oldBucket := oldTx.Bucket(bucketName)
				newBucket := newTx.Bucket(bucketName)

				if oldBucket == nil {
					continue
				}

				cursor := oldBucket.Cursor()
				for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
					if err := newBucket.Put(copyBytes(k), copyBytes(v)); err != nil {
						return fmt.Errorf("failed to copy data: %w", err)
					}
				}
			}

			return nil
		})
	})

	if err != nil {
		return fmt.Errorf("failed to copy data to compact database: %w", err)
	}

	// Close databases
	oldPath := s.path
	newDB.Close()
	s.db.Close()

	// Replace old database with compacted version
	if err := os.Rename(backupPath, oldPath); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}

	// Reopen the compacted database
	s.db, err = bbolt.Open(oldPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to reopen compacted database: %w", err)
	}

	logrus.Info("Database compaction completed successfully")
	return nil
}

// copyBytes creates a copy of a byte slice
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	copied := make([]byte, len(b))
	copy(copied, b)
	return copied
}
