// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package identity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Resolvers that distinguish absence from failure.
var ErrNotFound = errors.New("identity not found")

// Identity is a resolved actor.
type Identity struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the identity is logically absent at now.
func (i *Identity) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Name returns the display name, or the username when none is set.
func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Username
}

// Resolver looks up identities at the source of truth. A nil identity with
// a nil error means the id does not exist.
type Resolver interface {
	Lookup(ctx context.Context, id int64) (*Identity, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id int64) (*Identity, error)

// Lookup calls f.
func (f ResolverFunc) Lookup(ctx context.Context, id int64) (*Identity, error) {
	return f(ctx, id)
}

// SharedTier is a cache tier shared between processes. Get returns nil
// without error when the id is absent.
type SharedTier interface {
	Get(ctx context.Context, id int64) (*Identity, error)
	Set(ctx context.Context, identity *Identity) error
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	Close() error
}
