// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const identityKeyPrefix = "identity:"

// BadgerTier is a SharedTier backed by BadgerDB. Entries carry a Badger TTL
// matching their expiry so the store reclaims them on its own.
type BadgerTier struct {
	db    *badger.DB
	owned bool
	now   func() time.Time
}

// NewBadgerTier wraps an open database. The caller keeps ownership of db.
func NewBadgerTier(db *badger.DB) *BadgerTier {
	return &BadgerTier{db: db, now: time.Now}
}

// OpenBadgerTier opens a database at path, or in memory when path is empty.
func OpenBadgerTier(path string) (*BadgerTier, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerTier{db: db, owned: true, now: time.Now}, nil
}

func badgerKey(id int64) []byte {
	return []byte(identityKeyPrefix + strconv.FormatInt(id, 10))
}

// Get returns the stored identity for id.
func (t *BadgerTier) Get(_ context.Context, id int64) (*Identity, error) {
	var ident Identity
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ident)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %d: %w", id, err)
	}
	return &ident, nil
}

// Set stores identity until its expiry.
func (t *BadgerTier) Set(_ context.Context, identity *Identity) error {
	ttl := identity.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(badgerKey(identity.ID), data).WithTTL(ttl))
	})
}

// Delete removes id.
func (t *BadgerTier) Delete(_ context.Context, id int64) error {
	return t.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(badgerKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// Clear removes every identity.
func (t *BadgerTier) Clear(_ context.Context) error {
	return t.db.DropPrefix([]byte(identityKeyPrefix))
}

// Close closes the database if this tier opened it.
func (t *BadgerTier) Close() error {
	if !t.owned {
		return nil
	}
	return t.db.Close()
}

var _ SharedTier = (*BadgerTier)(nil)
