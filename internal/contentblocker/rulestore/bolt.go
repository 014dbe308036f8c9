package rulestore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/golibs/errors"
	"go.etcd.io/bbolt"
)

// boltBucket is the name of the bucket with the rule lists.
var boltBucket = []byte("rule_lists")

// BoltConfig is the configuration structure for a [*Bolt].
type BoltConfig struct {
	// Logger is used for logging the operation of the store.  It must not be
	// nil.
	Logger *slog.Logger

	// Path is the path to the database file.  It is created if it doesn't
	// exist.
	Path string

	// Timeout is the timeout of acquiring the lock on the database file.
	Timeout time.Duration
}

// Bolt is a [contentblocker.Store] that keeps the rule lists in a bbolt
// database.
type Bolt struct {
	logger *slog.Logger
	db     *bbolt.DB
}

// NewBolt opens the database and returns a new properly initialized *Bolt.  c
// must not be nil.
func NewBolt(c *BoltConfig) (s *Bolt, err error) {
	db, err := bbolt.Open(c.Path, 0o600, &bbolt.Options{
		Timeout: c.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening rule store db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) (txErr error) {
		_, txErr = tx.CreateBucketIfNotExists(boltBucket)

		return txErr
	})
	if err != nil {
		return nil, errors.WithDeferred(fmt.Errorf("creating bucket: %w", err), db.Close())
	}

	return &Bolt{
		logger: c.Logger,
		db:     db,
	}, nil
}

// type check
var _ contentblocker.Store = (*Bolt)(nil)

// Compile implements the [contentblocker.Store] interface for *Bolt.
func (s *Bolt) Compile(
	ctx context.Context,
	id string,
	encoded []byte,
) (rl *contentblocker.RuleList, err error) {
	rl, err = compile(id, encoded)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	err = s.db.Update(func(tx *bbolt.Tx) (txErr error) {
		return tx.Bucket(boltBucket).Put([]byte(id), encoded)
	})
	if err != nil {
		return nil, fmt.Errorf("storing rule list %q: %w", id, err)
	}

	s.logger.DebugContext(ctx, "stored rule list", "id", id, "size", len(encoded))

	return rl, nil
}

// Lookup implements the [contentblocker.Store] interface for *Bolt.
func (s *Bolt) Lookup(_ context.Context, id string) (rl *contentblocker.RuleList, err error) {
	err = s.db.View(func(tx *bbolt.Tx) (txErr error) {
		v := tx.Bucket(boltBucket).Get([]byte(id))
		if v == nil {
			return nil
		}

		// The value is only valid during the transaction.
		rl = &contentblocker.RuleList{
			Identifier: id,
			Encoded:    bytes.Clone(v),
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("looking up rule list %q: %w", id, err)
	}

	return rl, nil
}

// Remove implements the [contentblocker.Store] interface for *Bolt.
func (s *Bolt) Remove(ctx context.Context, id string) (err error) {
	err = s.db.Update(func(tx *bbolt.Tx) (txErr error) {
		return tx.Bucket(boltBucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("removing rule list %q: %w", id, err)
	}

	s.logger.DebugContext(ctx, "removed rule list", "id", id)

	return nil
}

// Close closes the database.
func (s *Bolt) Close() (err error) {
	return s.db.Close()
}
