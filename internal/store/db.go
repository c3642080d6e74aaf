package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

// Bucket names. Account buckets live in the user-management database, system
// buckets in the default database.
const (
	BucketUsers           = "users"
	BucketUsersByEmail    = "users_by_email"
	BucketUsersByUsername = "users_by_username"
	BucketFarmerProfiles  = "farmer_profiles"
	BucketExpertProfiles  = "expert_profiles"
	BucketSlots           = "availability_slots"
	BucketBookings        = "consultation_bookings"
	BucketPosts           = "community_posts"
	BucketResponses       = "community_responses"
	BucketPointTxns       = "point_transactions"
	BucketFeedback        = "feedback"
	BucketResetTokens     = "password_reset_tokens"
	BucketSystemMetrics   = "system_metrics"
	BucketSettings        = "settings"
)

var (
	accountBuckets = []string{
		BucketUsers, BucketUsersByEmail, BucketUsersByUsername,
		BucketFarmerProfiles, BucketExpertProfiles,
		BucketSlots, BucketBookings,
		BucketPosts, BucketResponses, BucketPointTxns,
		BucketFeedback, BucketResetTokens,
	}
	systemBuckets = []string{BucketSystemMetrics, BucketSettings}
)

const (
	DriverBolt   = "bolt"
	DriverMemory = "memory"
)

// DB routes account records to the user-management database and system
// records (metrics, runtime settings) to the default database.
type DB struct {
	Accounts Backend
	System   Backend
}

// Open opens both databases with the given driver. dataDir is ignored by the memory driver.
func Open(driver, dataDir string) (*DB, error) {
	switch driver {
	case DriverMemory:
		acc, err := OpenMemory(accountBuckets)
		if err != nil {
			return nil, err
		}
		sys, err := OpenMemory(systemBuckets)
		if err != nil {
			return nil, err
		}
		return &DB{Accounts: acc, System: sys}, nil
	case DriverBolt, "":
		acc, err := OpenBolt(filepath.Join(dataDir, "user_management.db"), accountBuckets)
		if err != nil {
			return nil, err
		}
		sys, err := OpenBolt(filepath.Join(dataDir, "default.db"), systemBuckets)
		if err != nil {
			_ = acc.Close()
			return nil, err
		}
		return &DB{Accounts: acc, System: sys}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// OpenMemoryDB is a convenience for tests.
func OpenMemoryDB() *DB {
	db, err := Open(DriverMemory, "")
	if err != nil {
		panic(err)
	}
	return db
}

func (d *DB) Close() error {
	return errors.Join(d.Accounts.Close(), d.System.Close())
}

func getJSON[T any](tx Tx, bucket, key string) (*T, error) {
	b, err := tx.Get(bucket, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return &v, nil
}

func putJSON(tx Tx, bucket, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	return tx.Put(bucket, key, b)
}

// listJSON decodes every value in bucket, keeping those for which keep returns true.
func listJSON[T any](tx Tx, bucket string, keep func(*T) bool) ([]T, error) {
	out := make([]T, 0)
	err := tx.ForEach(bucket, func(key string, val []byte) error {
		var v T
		if err := json.Unmarshal(val, &v); err != nil {
			return fmt.Errorf("decode %s/%s: %w", bucket, key, err)
		}
		if keep == nil || keep(&v) {
			out = append(out, v)
		}
		return nil
	})
	return out, err
}
