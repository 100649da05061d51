package bbolt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lovebughq/ladybug/lib/store"
	"go.etcd.io/bbolt"
)

var (
	bucketValues   = []byte("values")
	bucketExpiries = []byte("expiries")
)

// Store implements store.Interface backed by bbolt[1].
//
// Two top-level buckets are used: "values" holds the raw data keyed by the
// store key, and "expiries" holds the expiry time for keys that have one,
// encoded as unix nanoseconds. Keys without an expiries entry never expire,
// which is how verified flags stay durable. Keeping expiry out of the value
// record lets the sweep pass scan timestamps without decoding payloads.
//
// bbolt is single-writer and local to one instance. For running several
// Ladybug replicas against one datastore, use the valkey backend instead.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb *bbolt.DB
}

// Delete a key from the datastore. If the key does not exist, return an
// error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		values := tx.Bucket(bucketValues)
		if values == nil || values.Get([]byte(key)) == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		if err := values.Delete([]byte(key)); err != nil {
			return err
		}

		if expiries := tx.Bucket(bucketExpiries); expiries != nil {
			return expiries.Delete([]byte(key))
		}

		return nil
	})
}

// Get a value from the datastore, treating expired values as absent. When
// an expired value is spotted it is reaped in the background.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		values := tx.Bucket(bucketValues)
		if values == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		data := values.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		if expiries := tx.Bucket(bucketExpiries); expiries != nil {
			if raw := expiries.Get([]byte(key)); raw != nil {
				nanos, err := strconv.ParseInt(string(raw), 10, 64)
				if err != nil {
					return fmt.Errorf("[unexpected] %w: %q: %w", store.ErrCantDecode, key, err)
				}

				if time.Now().After(time.Unix(0, nanos)) {
					go s.Delete(context.Background(), key)
					return fmt.Errorf("%w: %q", store.ErrNotFound, key)
				}
			}
		}

		result = make([]byte, len(data))
		copy(result, data)
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Set a value into the store with a given expiry. An expiry of zero or less
// stores the value without one.
func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		values, err := tx.CreateBucketIfNotExists(bucketValues)
		if err != nil {
			return fmt.Errorf("%w: %q (values bucket): %w", store.ErrCantEncode, key, err)
		}

		expiries, err := tx.CreateBucketIfNotExists(bucketExpiries)
		if err != nil {
			return fmt.Errorf("%w: %q (expiries bucket): %w", store.ErrCantEncode, key, err)
		}

		if err := values.Put([]byte(key), value); err != nil {
			return fmt.Errorf("%w: %q (data)", store.ErrCantEncode, key)
		}

		if expiry <= 0 {
			if err := expiries.Delete([]byte(key)); err != nil {
				return fmt.Errorf("%w: %q (expiry)", store.ErrCantEncode, key)
			}
			return nil
		}

		nanos := strconv.FormatInt(time.Now().Add(expiry).UnixNano(), 10)
		if err := expiries.Put([]byte(key), []byte(nanos)); err != nil {
			return fmt.Errorf("%w: %q (expiry)", store.ErrCantEncode, key)
		}

		return nil
	})
}

func (s *Store) cleanup(ctx context.Context) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		expiries := tx.Bucket(bucketExpiries)
		if expiries == nil {
			return nil
		}
		values := tx.Bucket(bucketValues)

		c := expiries.Cursor()
		for key, raw := c.First(); key != nil; key, raw = c.Next() {
			nanos, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				slog.Warn("unparseable expiry in store, file a bug?", "key", string(key))
				continue
			}

			if now.After(time.Unix(0, nanos)) {
				if err := c.Delete(); err != nil {
					return err
				}
				if values != nil {
					if err := values.Delete(key); err != nil {
						return err
					}
				}
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("error during bbolt cleanup", "err", err)
			}
		}
	}
}
