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

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisTier is a SharedTier backed by Redis string keys with expiry.
type RedisTier struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisTier wraps client. Keys are prefix + "identity:" + id.
func NewRedisTier(client *redis.Client, prefix string) *RedisTier {
	return &RedisTier{client: client, prefix: prefix + identityKeyPrefix, now: time.Now}
}

// OpenRedisTier connects to the Redis server at url and verifies it responds.
func OpenRedisTier(ctx context.Context, url, prefix string) (*RedisTier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisTier(client, prefix), nil
}

func (t *RedisTier) key(id int64) string {
	return t.prefix + strconv.FormatInt(id, 10)
}

// Get returns the stored identity for id.
func (t *RedisTier) Get(ctx context.Context, id int64) (*Identity, error) {
	data, err := t.client.Get(ctx, t.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %d: %w", id, err)
	}
	var ident Identity
	if err := json.Unmarshal(data, &ident); err != nil {
		return nil, fmt.Errorf("decode identity %d: %w", id, err)
	}
	return &ident, nil
}

// Set stores identity until its expiry.
func (t *RedisTier) Set(ctx context.Context, identity *Identity) error {
	ttl := identity.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return t.client.Set(ctx, t.key(identity.ID), data, ttl).Err()
}

// Delete removes id.
func (t *RedisTier) Delete(ctx context.Context, id int64) error {
	return t.client.Del(ctx, t.key(id)).Err()
}

// Clear removes every identity under the prefix.
func (t *RedisTier) Clear(ctx context.Context) error {
	iter := t.client.Scan(ctx, 0, t.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			if err := t.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return t.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Close closes the client.
func (t *RedisTier) Close() error {
	return t.client.Close()
}

var _ SharedTier = (*RedisTier)(nil)
