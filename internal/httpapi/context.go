// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package httpapi exposes the catalog and identity services over a
// JSON HTTP API. Authentication is optional on every route: a request
// without a valid bearer token runs as the anonymous guest and the
// access engine decides what it may see.
package httpapi

import (
	"context"
	"net/netip"

	"github.com/cairn/cairn/internal/identity"
)

type contextKey int

const (
	userKey contextKey = iota
	clientAddrKey
)

// UserFromContext returns the authenticated user, or nil for an
// anonymous request.
func UserFromContext(ctx context.Context) *identity.User {
	user, _ := ctx.Value(userKey).(*identity.User)
	return user
}

// ContextWithUser attaches an authenticated user to the context.
func ContextWithUser(ctx context.Context, user *identity.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// ClientAddrFromContext returns the request's client address. The zero
// Addr means the address could not be determined; IP-restricted rules
// then fail closed.
func ClientAddrFromContext(ctx context.Context) netip.Addr {
	addr, _ := ctx.Value(clientAddrKey).(netip.Addr)
	return addr
}

// ContextWithClientAddr attaches the client address to the context.
func ContextWithClientAddr(ctx context.Context, addr netip.Addr) context.Context {
	return context.WithValue(ctx, clientAddrKey, addr)
}
